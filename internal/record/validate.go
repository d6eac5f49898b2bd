package record

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tatami/internal/apperr"
)

// idRe matches storage-safe ids. A leading underscore is reserved for
// bookkeeping documents such as the id registry.
var idRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidID reports whether id can name a record.
func ValidID(id string) bool {
	return idRe.MatchString(id)
}

// Validate checks the record against the family taxonomy.
func (r *Record) Validate(f Family) error {
	cats := make([]interface{}, len(f.Categories))
	for i, c := range f.Categories {
		cats[i] = c
	}
	diffs := make([]interface{}, 0, len(difficultyNames))
	for _, d := range Difficulties() {
		diffs = append(diffs, d)
	}
	err := validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required, validation.Match(idRe)),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Types, validation.Each(validation.In(cats...))),
		validation.Field(&r.Difficulty, validation.In(diffs...)),
		validation.Field(&r.Parent, validation.Match(idRe)),
		validation.Field(&r.Inverse, validation.Match(idRe)),
		validation.Field(&r.Content),
	)
	if err != nil {
		return fmt.Errorf("record %q: %w: %w", r.ID, apperr.ErrInvalid, err)
	}
	return nil
}

// Validate checks a single content block.
func (c Content) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ContentType, validation.Required, validation.In(Text, YouTubeVideo, Ad)),
		validation.Field(&c.Contents, validation.Required),
		validation.Field(&c.VideoStart, validation.Min(0)),
	)
}
