package record

import "fmt"

// Difficulty is an ordered rank. Values are persisted as integers.
type Difficulty int

const (
	Universal    Difficulty = 0
	Beginner     Difficulty = 10
	Novice       Difficulty = 20
	Intermediate Difficulty = 30
	Advanced     Difficulty = 40
	Expert       Difficulty = 50
)

var difficultyNames = map[Difficulty]string{
	Universal:    "universal",
	Beginner:     "beginner",
	Novice:       "novice",
	Intermediate: "intermediate",
	Advanced:     "advanced",
	Expert:       "expert",
}

func (d Difficulty) String() string {
	if s, ok := difficultyNames[d]; ok {
		return s
	}
	return fmt.Sprintf("difficulty(%d)", int(d))
}

// Difficulties lists every valid rank in ascending order.
func Difficulties() []Difficulty {
	return []Difficulty{Universal, Beginner, Novice, Intermediate, Advanced, Expert}
}

// Category is a taxonomy tag. Hundreds group related tags.
type Category int

const (
	Position                  Category = 100
	Submission                Category = 200
	SubmissionChokehold       Category = 201
	SubmissionJointLock       Category = 202
	SubmissionCompressionLock Category = 203
	Sweep                     Category = 300
	Takedown                  Category = 400
	TakedownThrow             Category = 401
	Pass                      Category = 500
	Defense                   Category = 700
	DefenseEscape             Category = 701
	Concept                   Category = 900
)

var categoryNames = map[Category]string{
	Position:                  "position",
	Submission:                "submission",
	SubmissionChokehold:       "submission_chokehold",
	SubmissionJointLock:       "submission_joint_lock",
	SubmissionCompressionLock: "submission_compression_lock",
	Sweep:                     "sweep",
	Takedown:                  "takedown",
	TakedownThrow:             "takedown_throw",
	Pass:                      "pass",
	Defense:                   "defense",
	DefenseEscape:             "defense_escape",
	Concept:                   "concept",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ContentType tags an embedded content block.
type ContentType int

const (
	Text         ContentType = 10
	YouTubeVideo ContentType = 30
	Ad           ContentType = 90
)

func (t ContentType) String() string {
	switch t {
	case Text:
		return "text"
	case YouTubeVideo:
		return "youtube_video"
	case Ad:
		return "ad"
	}
	return fmt.Sprintf("content_type(%d)", int(t))
}
