package paddle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so errors match the payload the provider sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeNotification parses the envelope. Bodies that are not JSON yield
// apperr.ErrMalformed; JSON missing the envelope fields yields a validation
// error.
func DecodeNotification(body []byte) (*Notification, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid json", apperr.ErrMalformed)
	}
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, apperr.NewValidation("notification", typeErr.Field)
		}
		return nil, apperr.NewValidation("notification", "occurred_at")
	}
	if err := check("notification", &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func DecodeSubscription(data json.RawMessage) (*Subscription, error) {
	var s Subscription
	if err := decodeData("subscription", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func DecodeTransaction(data json.RawMessage) (*Transaction, error) {
	var t Transaction
	if err := decodeData("transaction", data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeData(kind string, data json.RawMessage, out any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return apperr.NewValidation(kind, "data")
	}
	if err := json.Unmarshal(data, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperr.NewValidation(kind, typeErr.Field)
		}
		return apperr.NewValidation(kind, "data")
	}
	return check(kind, out)
}

func check(kind string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate %s: %w", kind, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// drop the root struct name
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	return apperr.NewValidation(kind, fields...)
}
