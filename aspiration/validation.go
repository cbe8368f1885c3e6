package aspiration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

const MaxImageChars = 3_000_000

var (
	validate = validator.New()
	strip    = bluemonday.StrictPolicy()
)

// Input é o corpo de POST /api/aspirations.
type Input struct {
	Category string `json:"category" validate:"required,oneof=Akademik Organisasi Fasilitas Kebijakan Lainnya"`
	Title    string `json:"title" validate:"required,min=5,max=200"`
	Message  string `json:"message" validate:"required,min=10,max=2000"`
	Image    string `json:"image,omitempty" validate:"omitempty,max=3000000,startswith=data:image/"`
}

// FieldError descreve um campo rejeitado.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError agrupa os campos rejeitados.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid aspiration: " + strings.Join(msgs, "; ")
}

// Sanitize remove HTML dos campos de texto e apara espaços.
// A imagem não passa pelo filtro (data URL).
func (in Input) Sanitize() Input {
	in.Category = strings.TrimSpace(in.Category)
	in.Title = strings.TrimSpace(strip.Sanitize(in.Title))
	in.Message = strings.TrimSpace(strip.Sanitize(in.Message))
	in.Image = strings.TrimSpace(in.Image)
	return in
}

// Validate sanitiza e valida. Devolve a entrada limpa ou *ValidationError.
func (in Input) Validate() (Input, error) {
	clean := in.Sanitize()

	err := validate.Struct(clean)
	if err == nil {
		return clean, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return clean, err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: jsonName(fe.Field()), Message: message(fe)})
	}
	return clean, out
}

func jsonName(field string) string {
	return strings.ToLower(field[:1]) + field[1:]
}

func message(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "Category.required", "Category.oneof":
		return "Kategori tidak valid"
	case "Title.required":
		return "Judul tidak boleh kosong"
	case "Title.min":
		return "Judul minimal 5 karakter"
	case "Title.max":
		return "Judul maksimal 200 karakter"
	case "Message.required":
		return "Pesan tidak boleh kosong"
	case "Message.min":
		return "Pesan minimal 10 karakter"
	case "Message.max":
		return "Pesan maksimal 2000 karakter"
	case "Image.max":
		return "Ukuran gambar terlalu besar (maksimal 2MB)"
	case "Image.startswith":
		return "Format gambar tidak valid"
	}
	return fmt.Sprintf("%s must satisfy %s", jsonName(fe.Field()), fe.Tag())
}
