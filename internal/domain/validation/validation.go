// Package validation runs struct-tag schema checks on solver requests and
// turns validator failures into calcerr InvalidInput errors that name the
// offending JSON field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
)

// validate is shared by every request type. validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// Struct validates v and returns the first violation as an InvalidInput error.
func Struct(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return calcerr.Invalid(op, "", "%v", err)
	}
	fe := verrs[0]
	return calcerr.Invalid(op, fieldPath(fe.Namespace()), "%s", describe(fe))
}

// fieldPath drops the root struct name: "Request.lattice.a" -> "lattice.a".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	collection := false
	switch fe.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		collection = true
	}
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lt":
		return "must be < " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "min":
		if collection {
			return fmt.Sprintf("must contain at least %s element(s)", fe.Param())
		}
		return "must be >= " + fe.Param()
	case "max":
		if collection {
			return fmt.Sprintf("must contain at most %s element(s)", fe.Param())
		}
		return "must be <= " + fe.Param()
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "eqfield":
		return "must match " + fe.Param()
	}
	return fmt.Sprintf("failed %q constraint", fe.Tag())
}
