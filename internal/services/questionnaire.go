package services

import (
	"fmt"

	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
)

// QuestionnaireQuestion is one item of the short-form index of learning
// styles inventory. Answer "a" leans toward the dimension's positive pole,
// answer "b" toward the negative pole.
type QuestionnaireQuestion struct {
	ID        int    `json:"id"`
	Dimension string `json:"dimension"`
	Text      string `json:"text"`
	OptionA   string `json:"optionA"`
	OptionB   string `json:"optionB"`
}

// QuestionnaireService serves the self-report inventory and converts raw
// answers into dimension scores on the same scale the behavioral labeler
// uses, so both can be merged downstream.
type QuestionnaireService interface {
	Questions() []QuestionnaireQuestion
	CalculateScores(answers map[int]string) (types.DimensionScores, error)
}

type questionnaireService struct {
	log       *logger.Logger
	questions []QuestionnaireQuestion
}

func NewQuestionnaireService(log *logger.Logger) QuestionnaireService {
	return &questionnaireService{
		log:       log.With("service", "QuestionnaireService"),
		questions: ilsQuestions(),
	}
}

func (s *questionnaireService) Questions() []QuestionnaireQuestion {
	out := make([]QuestionnaireQuestion, len(s.questions))
	copy(out, s.questions)
	return out
}

// CalculateScores tallies a/b answers per dimension and rescales the net
// tally from the 5-question range onto [-11, 11]. Every question must be
// answered with "a" or "b".
func (s *questionnaireService) CalculateScores(answers map[int]string) (types.DimensionScores, error) {
	tallies := map[string]int{}
	for _, q := range s.questions {
		answer, ok := answers[q.ID]
		if !ok {
			return types.DimensionScores{}, fmt.Errorf("missing answer for question %d", q.ID)
		}
		switch answer {
		case "a":
			tallies[q.Dimension]++
		case "b":
			tallies[q.Dimension]--
		default:
			return types.DimensionScores{}, fmt.Errorf("invalid answer %q for question %d", answer, q.ID)
		}
	}
	return types.DimensionScores{
		ActiveReflective: scaleTally(tallies["activeReflective"]),
		SensingIntuitive: scaleTally(tallies["sensingIntuitive"]),
		VisualVerbal:     scaleTally(tallies["visualVerbal"]),
		SequentialGlobal: scaleTally(tallies["sequentialGlobal"]),
	}, nil
}

// Five questions per dimension, so the raw tally lives in [-5, 5].
func scaleTally(tally int) int {
	scaled := tally * 11
	if scaled >= 0 {
		scaled = (scaled + 2) / 5
	} else {
		scaled = (scaled - 2) / 5
	}
	if scaled > 11 {
		return 11
	}
	if scaled < -11 {
		return -11
	}
	return scaled
}

func ilsQuestions() []QuestionnaireQuestion {
	return []QuestionnaireQuestion{
		{1, "activeReflective", "I understand something better after I", "try it out", "think it through"},
		{2, "activeReflective", "In a study group working on difficult material, I am more likely to", "jump in and contribute ideas", "sit back and listen"},
		{3, "activeReflective", "When I start a homework problem, I am more likely to", "start working on the solution immediately", "try to fully understand the problem first"},
		{4, "activeReflective", "I prefer to study", "in a group", "alone"},
		{5, "activeReflective", "When I learn something new, it helps me to", "talk about it", "think about it"},
		{6, "sensingIntuitive", "I would rather be considered", "realistic", "innovative"},
		{7, "sensingIntuitive", "I find it easier to learn", "facts", "concepts"},
		{8, "sensingIntuitive", "In reading nonfiction, I prefer", "something that teaches me new facts or tells me how to do something", "something that gives me new ideas to think about"},
		{9, "sensingIntuitive", "I prefer courses that emphasize", "concrete material such as facts and data", "abstract material such as theories"},
		{10, "sensingIntuitive", "When I solve math problems, I", "usually work my way to the solution one step at a time", "often just see the solution but then struggle to show the steps"},
		{11, "visualVerbal", "When I think about what I did yesterday, I am most likely to get", "a picture", "words"},
		{12, "visualVerbal", "I prefer to get new information in", "pictures, diagrams, graphs, or maps", "written directions or verbal information"},
		{13, "visualVerbal", "In a book with lots of pictures and charts, I am likely to", "look over the pictures and charts carefully", "focus on the written text"},
		{14, "visualVerbal", "When someone is showing me data, I prefer", "charts or graphs", "text summarizing the results"},
		{15, "visualVerbal", "I remember best", "what I see", "what I hear"},
		{16, "sequentialGlobal", "When I am learning a new subject, I prefer to", "stay focused on that subject, learning as much about it as I can", "try to make connections between that subject and related subjects"},
		{17, "sequentialGlobal", "I tend to", "understand details of a subject but may be fuzzy about its overall structure", "understand the overall structure but may be fuzzy about details"},
		{18, "sequentialGlobal", "Once I understand", "all the parts, I understand the whole thing", "the whole thing, I see how the parts fit"},
		{19, "sequentialGlobal", "When solving problems in a group, I would be more likely to", "think of the steps in the solution process", "think of possible consequences or applications of the solution"},
		{20, "sequentialGlobal", "When writing a paper, I am more likely to", "work on the beginning of the paper and progress forward", "write different parts of the paper and then order them"},
	}
}
