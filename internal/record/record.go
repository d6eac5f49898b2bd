// Package record defines the technique record model shared by every record family.
package record

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Record is a single technique or article entry.
//
// Single references (Parent, Inverse) use the empty string for "absent".
type Record struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	NameSuffix1  string     `json:"name_suffix_1" yaml:"name_suffix_1"`
	NameSuffix2  string     `json:"name_suffix_2" yaml:"name_suffix_2"`
	OtherNames   string     `json:"other_names" yaml:"other_names"`
	Summary      string     `json:"summary" yaml:"summary"`
	Types        []Category `json:"types" yaml:"types"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	IsCounter    bool       `json:"is_counter" yaml:"is_counter"`
	RequiresGi   bool       `json:"requires_gi" yaml:"requires_gi"`
	IsSearchable bool       `json:"is_searchable" yaml:"is_searchable"`
	Ranking      int        `json:"ranking" yaml:"ranking"`
	Parent       string     `json:"parent" yaml:"parent"`
	Inverse      string     `json:"inverse" yaml:"inverse"`
	Followups    []string   `json:"followups" yaml:"followups"`
	Preceding    []string   `json:"preceding" yaml:"preceding"`
	Counters     []string   `json:"counters" yaml:"counters"`
	Concepts     []string   `json:"concepts" yaml:"concepts"`
	Content      []Content  `json:"content" yaml:"content"`
}

// Content is a block embedded in a record. It has no identity of its own.
type Content struct {
	ContentType ContentType `json:"content_type" yaml:"content_type"`
	Contents    string      `json:"contents" yaml:"contents"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	VideoStart  int         `json:"video_start_at,omitempty" yaml:"video_start_at,omitempty"`
}

// UnmarshalJSON also accepts the legacy "video_start" key.
func (c *Content) UnmarshalJSON(data []byte) error {
	type plain Content
	var aux struct {
		plain
		LegacyVideoStart int `json:"video_start"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Content(aux.plain)
	if c.VideoStart == 0 {
		c.VideoStart = aux.LegacyVideoStart
	}
	return nil
}

// UnmarshalYAML also accepts the legacy "video_start" key.
func (c *Content) UnmarshalYAML(value *yaml.Node) error {
	type plain Content
	var aux struct {
		plain            `yaml:",inline"`
		LegacyVideoStart int `yaml:"video_start"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*c = Content(aux.plain)
	if c.VideoStart == 0 {
		c.VideoStart = aux.LegacyVideoStart
	}
	return nil
}

// Normalize replaces nil lists with empty ones so documents always carry every key.
func (r *Record) Normalize() {
	if r.Types == nil {
		r.Types = []Category{}
	}
	for _, p := range []*[]string{&r.Followups, &r.Preceding, &r.Counters, &r.Concepts} {
		if *p == nil {
			*p = []string{}
		}
	}
	if r.Content == nil {
		r.Content = []Content{}
	}
}

// Ref returns a pointer to the single-reference field for rel, or nil when rel
// is a list relation.
func (r *Record) Ref(rel Relation) *string {
	switch rel {
	case Parent:
		return &r.Parent
	case Inverse:
		return &r.Inverse
	}
	return nil
}

// RefList returns a pointer to the list field for rel, or nil when rel is a
// single reference.
func (r *Record) RefList(rel Relation) *[]string {
	switch rel {
	case Followups:
		return &r.Followups
	case Preceding:
		return &r.Preceding
	case Counters:
		return &r.Counters
	case Concepts:
		return &r.Concepts
	}
	return nil
}
