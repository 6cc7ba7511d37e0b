package review

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tmalose/peerly/core"
)

var (
	mcOptionsTag  = "mcoptions"
	mcOptionsText = "multiple choice questions must provide at least 2 options"
)

// InitValidators registers the review domain's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, mcOptionsTag, mcOptionsText)
}

// questionStructValidation does struct level validation on the NewQuestion struct.
// Options only matter for multiple choice; other types ignore them.
func questionStructValidation(sl validator.StructLevel) {
	if nq, ok := sl.Current().Interface().(NewQuestion); ok {
		if nq.Type == QuestionMultipleChoice && len(nq.Options) < 2 {
			sl.ReportError(nq.Options, "options", "Options", mcOptionsTag, "")
		}
	}
}
