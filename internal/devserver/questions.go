package devserver

import (
	"fmt"
	"hash/fnv"

	"github.com/khrees2412/jobportal/pkg/models"
)

type mcqTemplate struct {
	prompt  string
	options []string
}

var mcqBank = []mcqTemplate{
	{"Which practice most improves the reliability of %s work?", []string{"Automated tests", "Manual spot checks", "Longer meetings", "Skipping reviews"}},
	{"When a %s task is blocked by an unclear requirement, what should you do first?", []string{"Ask the owner to clarify", "Guess and ship", "Wait silently", "Drop the task"}},
	{"What is the main benefit of code review in %s?", []string{"Catching defects early", "Slowing delivery", "Assigning blame", "Avoiding documentation"}},
	{"Which metric best reflects production health for %s systems?", []string{"Error rate", "Lines of code", "Number of commits", "Meeting count"}},
	{"How should secrets be handled in a %s codebase?", []string{"Loaded from a secret store", "Committed to git", "Pasted in chat", "Hardcoded in tests"}},
	{"What does idempotence guarantee for a %s operation?", []string{"Repeating it has the same effect", "It runs faster", "It never fails", "It uses less memory"}},
}

// QuestionsFor builds a deterministic five-question set for topic: four
// multiple-choice questions and one coding prompt. Correct answers are
// rotated through the option positions.
func QuestionsFor(topic string) []models.Question {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	start := int(h.Sum32() % uint32(len(mcqBank)))

	questions := make([]models.Question, 0, 5)
	for i := 0; i < 4; i++ {
		tpl := mcqBank[(start+i)%len(mcqBank)]
		correct := i % len(tpl.options)
		options := rotate(tpl.options, correct)
		questions = append(questions, models.Question{
			ID:      i + 1,
			Type:    models.QuestionMCQ,
			Prompt:  fmt.Sprintf(tpl.prompt, topic),
			Options: options,
			Correct: &correct,
		})
	}
	questions = append(questions, models.Question{
		ID:          5,
		Type:        models.QuestionCode,
		Prompt:      fmt.Sprintf("Write a function that removes duplicate entries from a list, as you would in a %s codebase.", topic),
		Placeholder: "// your solution",
	})
	return questions
}

// rotate places the first option (the correct one) at index pos.
func rotate(options []string, pos int) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[(i+pos)%len(options)] = o
	}
	return out
}
