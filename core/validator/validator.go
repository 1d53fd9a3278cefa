package validator

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator validates structs against their `validate` tags.
type Validator interface {
	Struct(s any) error
	StructCtx(ctx context.Context, s any) error
	GetValidator() *validator.Validate
}

// Validate is the global validator instance.
var (
	Validate Validator
	once     sync.Once
)

func init() {
	once.Do(func() {
		Validate = New()
	})
}

type validatorImpl struct {
	validator *validator.Validate
	trans     ut.Translator
}

// Option configures the validator.
type Option func(*validatorImpl)

// WithTagName overrides the struct tag used for validation rules.
func WithTagName(tagName string) Option {
	return func(v *validatorImpl) {
		v.validator.SetTagName(tagName)
	}
}

// New creates a validator with translated English error messages.
func New(opts ...Option) Validator {
	v := &validatorImpl{
		validator: validator.New(),
	}

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	if trans, found := uni.GetTranslator("en"); found {
		v.trans = trans
		_ = en_translations.RegisterDefaultTranslations(v.validator, trans)
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Struct validates a struct value.
func (v *validatorImpl) Struct(s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}

	return v.translateError(v.validator.Struct(s))
}

// StructCtx validates a struct value with a context.
func (v *validatorImpl) StructCtx(ctx context.Context, s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}

	return v.translateError(v.validator.StructCtx(ctx, s))
}

// GetValidator returns the underlying validator instance.
func (v *validatorImpl) GetValidator() *validator.Validate {
	return v.validator
}

func (v *validatorImpl) translateError(err error) error {
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || v.trans == nil {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fe.Translate(v.trans))
	}

	return errors.New(strings.Join(messages, "; "))
}
