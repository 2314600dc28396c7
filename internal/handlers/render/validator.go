package render

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("localpath", validateLocalPath)
	v.RegisterTagNameFunc(useJSONTagNames)
	return v
}

// Validate checks struct against its validate tags, "localpath" accepts only paths on this site
// Returns validator.ValidationErrors if value is invalid
func Validate(value any) error {
	return validate.Struct(value)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// isLocalPath reports whether s is a path on this site, safe to redirect to
// "//host" and "/\host" are treated by browsers as other sites
func isLocalPath(s string) bool {
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return false
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return false
	}

	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

func validateLocalPath(fl validator.FieldLevel) bool {
	return isLocalPath(fl.Field().String())
}
