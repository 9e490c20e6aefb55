package repository

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/softai/coursecore/internal/domain/model"
)

// Seed is the YAML layout accepted by LoadSeedFile.
//
//	quizzes:
//	  - id: intro-quiz
//	    pass_score_percent: 70
//	    questions:
//	      - {id: q1, order: 1, correct_index: 2, points: 1, explanation: "..."}
//	progress:
//	  - {user_id: u1, course_id: c1, percent: 100}
type Seed struct {
	Quizzes  []SeedQuiz     `koanf:"quizzes"`
	Progress []SeedProgress `koanf:"progress"`
}

type SeedQuiz struct {
	ID               string         `koanf:"id"`
	PassScorePercent int            `koanf:"pass_score_percent"`
	Questions        []SeedQuestion `koanf:"questions"`
}

type SeedQuestion struct {
	ID           string `koanf:"id"`
	Order        int    `koanf:"order"`
	CorrectIndex int    `koanf:"correct_index"`
	Points       int    `koanf:"points"`
	Explanation  string `koanf:"explanation"`
}

type SeedProgress struct {
	UserID   string `koanf:"user_id"`
	CourseID string `koanf:"course_id"`
	Percent  int    `koanf:"percent"`
}

// LoadSeedFile reads a seed file and applies it to m.
func LoadSeedFile(path string, m *Memory) (Seed, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
	}

	var s Seed
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Seed{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	if err := s.Apply(m); err != nil {
		return Seed{}, fmt.Errorf("apply seed %s: %w", path, err)
	}
	return s, nil
}

// Apply loads the seed into m.
func (s Seed) Apply(m *Memory) error {
	for _, q := range s.Quizzes {
		if q.ID == "" {
			return errors.New("quiz without id")
		}
		seen := make(map[int]string, len(q.Questions))
		questions := make([]model.Question, 0, len(q.Questions))
		for _, sq := range q.Questions {
			if prev, dup := seen[sq.Order]; dup {
				return fmt.Errorf("quiz %s: questions %s and %s share order %d", q.ID, prev, sq.ID, sq.Order)
			}
			seen[sq.Order] = sq.ID
			questions = append(questions, model.Question{
				ID:           sq.ID,
				Order:        sq.Order,
				CorrectIndex: sq.CorrectIndex,
				Points:       sq.Points,
				Explanation:  sq.Explanation,
			})
		}
		m.PutQuiz(model.Quiz{ID: q.ID, PassScorePercent: q.PassScorePercent}, questions...)
	}
	for _, p := range s.Progress {
		m.SetProgress(p.UserID, p.CourseID, p.Percent)
	}
	return nil
}
