package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"expertassist/internal/experts"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validatorOnce sync.Once
	translator    ut.Translator
)

// RegisterValidators installs the custom binding tags on gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		enLoc := en.New()
		translator, _ = ut.New(enLoc, enLoc).GetTranslator("en")

		// prefer json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, translator)

		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return experts.ValidPhone(fl.Field().String())
		})
		_ = v.RegisterValidation("expert_category", func(fl validator.FieldLevel) bool {
			return experts.Category(fl.Field().String()).Valid()
		})
		registerMessage(v, "phone", "Please enter a valid phone number")
		registerMessage(v, "expert_category", "{0} must be one of realtor, lender, inspector, appraiser, attorney, insurance_agent, other")
	})
}

func registerMessage(v *validator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

// bindJSON decodes and validates the body, aborting with a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if translator != nil {
			msgs = append(msgs, fe.Translate(translator))
		} else {
			msgs = append(msgs, fe.Error())
		}
	}
	return strings.Join(msgs, "; ")
}
