package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// ValidateStruct runs `validate` tags and reports the first failure as a
// validation error naming the json field.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return NewValidationError("%s", fieldMessage(ve[0]))
	}
	return fmt.Errorf("%w: %v", ErrorValidation, err)
}

// ProcessValidationErrors maps each failing field to its message. It is
// empty when err did not come from the validator.
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errorResponse
	}
	for _, fe := range ve {
		errorResponse[fe.Field()] = fieldMessage(fe)
	}
	return errorResponse
}

// RegisterJSONFieldNames makes a binding engine name fields by their json
// tag, as ValidateStruct does.
func RegisterJSONFieldNames(engine any) {
	if v, ok := engine.(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s is not a valid email", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// check if id exists, return RecordNotFound error naming the resource
func ValidateResourceId[T any](ctx context.Context, db *gorm.DB, resource string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, db, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return NewNotFoundError(resource)
	}
	return nil
}

// ValidateUnique rejects value when another row (id != excludeId) holds it.
func ValidateUnique[T any](ctx context.Context, db *gorm.DB, column string, value interface{}, excludeId int) error {
	count, err := ResourceCountWhere[T](ctx, db, column+" = ? AND id <> ?", value, excludeId)
	if err != nil {
		return err
	}
	if count > 0 {
		return NewValidationError("duplicate %s", column)
	}
	return nil
}

func ResourceCountWhere[T any](ctx context.Context, db *gorm.DB, condition string, values ...interface{}) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(new(T)).Where(condition, values...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
