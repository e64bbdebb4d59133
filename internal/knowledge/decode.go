package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/models"
)

type wireCornell struct {
	Notes   *string   `json:"notes"`
	Cues    *[]string `json:"cues"`
	Summary *string   `json:"summary"`
}

func (c wireCornell) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Notes, validation.NotNil),
		validation.Field(&c.Cues, validation.NotNil),
		validation.Field(&c.Summary, validation.NotNil),
	)
}

type wireFact struct {
	Fact   string `json:"fact"`
	Status string `json:"status"`
}

func (f wireFact) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Fact, validation.Required),
		validation.Field(&f.Status, validation.Required, validation.In(
			string(models.FactVerified), string(models.FactUncertain), string(models.FactCorrection))),
	)
}

type wireValidation struct {
	AccuracyScore    *float64    `json:"accuracyScore"`
	VerificationNote *string     `json:"verificationNote"`
	FactCheckDetails *[]wireFact `json:"factCheckDetails"`
	MissingPoints    []string    `json:"missingPoints"`
	Inconsistencies  []string    `json:"inconsistencies"`
}

func (v wireValidation) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.AccuracyScore, validation.NotNil, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&v.VerificationNote, validation.NotNil),
		validation.Field(&v.FactCheckDetails, validation.NotNil),
	)
}

type wireConnection struct {
	Title    string `json:"title"`
	Relation string `json:"relation"`
}

func (c wireConnection) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required),
	)
}

type wireNote struct {
	Title       *string           `json:"title"`
	Category    *string           `json:"category"`
	Tags        *[]string         `json:"tags"`
	Cornell     *wireCornell      `json:"cornell"`
	Validation  *wireValidation   `json:"validation"`
	Connections *[]wireConnection `json:"connections"`
}

func (n wireNote) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required),
		validation.Field(&n.Category, validation.Required),
		validation.Field(&n.Tags, validation.NotNil),
		validation.Field(&n.Cornell, validation.NotNil),
		validation.Field(&n.Validation, validation.NotNil),
		validation.Field(&n.Connections, validation.NotNil),
	)
}

// DecodeStructured parses and validates a structuring reply. Any deviation
// from the note schema is reported as apperr.ErrMalformed.
func DecodeStructured(text string) (*Structured, error) {
	var w wireNote
	if err := json.Unmarshal([]byte(stripFences(text)), &w); err != nil {
		return nil, malformed(err)
	}
	for i := range derefFacts(w.Validation) {
		f := &(*w.Validation.FactCheckDetails)[i]
		f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	}
	if err := w.Validate(); err != nil {
		return nil, malformed(err)
	}
	if err := w.Cornell.Validate(); err != nil {
		return nil, malformed(fmt.Errorf("cornell: %w", err))
	}
	if err := w.Validation.Validate(); err != nil {
		return nil, malformed(fmt.Errorf("validation: %w", err))
	}

	category, err := models.ParseCategory(*w.Category)
	if err != nil {
		return nil, malformed(err)
	}

	out := &Structured{
		Title:    strings.TrimSpace(*w.Title),
		Category: category,
		Tags:     cleanStrings(*w.Tags),
		Cornell: models.Cornell{
			Notes:   *w.Cornell.Notes,
			Cues:    cleanStrings(*w.Cornell.Cues),
			Summary: *w.Cornell.Summary,
		},
		Validation: models.Validation{
			AccuracyScore:    *w.Validation.AccuracyScore,
			VerificationNote: *w.Validation.VerificationNote,
			FactCheckDetails: make([]models.FactCheck, 0, len(*w.Validation.FactCheckDetails)),
			MissingPoints:    cleanStrings(w.Validation.MissingPoints),
			Inconsistencies:  cleanStrings(w.Validation.Inconsistencies),
		},
		Connections: make([]models.Connection, 0, len(*w.Connections)),
	}
	for i, f := range *w.Validation.FactCheckDetails {
		if err := f.Validate(); err != nil {
			return nil, malformed(fmt.Errorf("factCheckDetails[%d]: %w", i, err))
		}
		out.Validation.FactCheckDetails = append(out.Validation.FactCheckDetails,
			models.FactCheck{Fact: f.Fact, Status: models.FactStatus(f.Status)})
	}
	for i, c := range *w.Connections {
		c.Title = strings.TrimSpace(c.Title)
		if err := c.Validate(); err != nil {
			return nil, malformed(fmt.Errorf("connections[%d]: %w", i, err))
		}
		out.Connections = append(out.Connections, models.Connection{Title: c.Title, Relation: strings.TrimSpace(c.Relation)})
	}
	return out, nil
}

// DecodeKeywords accepts either a JSON array of strings or an object with a
// "keywords" array, and returns at most MaxKeywords non-empty entries.
func DecodeKeywords(text string) ([]string, error) {
	raw := []byte(stripFences(text))

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var obj struct {
			Keywords []string `json:"keywords"`
		}
		if objErr := json.Unmarshal(raw, &obj); objErr != nil {
			return nil, malformed(err)
		}
		list = obj.Keywords
	}
	list = cleanStrings(list)
	if len(list) > MaxKeywords {
		list = list[:MaxKeywords]
	}
	return list, nil
}

func malformed(err error) error {
	return fmt.Errorf("knowledge: %w: %v", apperr.ErrMalformed, err)
}

func derefFacts(v *wireValidation) []wireFact {
	if v == nil || v.FactCheckDetails == nil {
		return nil
	}
	return *v.FactCheckDetails
}

// stripFences removes a surrounding Markdown code fence, which some
// OpenAI-compatible models add even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
