package models

import "fmt"

// Tier identifies a provider cost tier.
type Tier string

const (
	TierLocal          Tier = "LOCAL"
	TierHostedStandard Tier = "HOSTED_STANDARD"
	TierHostedPremium  Tier = "HOSTED_PREMIUM"
)

// Hosted reports whether the tier bills per token.
func (t Tier) Hosted() bool {
	return t == TierHostedStandard || t == TierHostedPremium
}

// ParseTier converts a string to a Tier.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierLocal, TierHostedStandard, TierHostedPremium:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Role identifies the kind of user making a request.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleParent  Role = "PARENT"
	RoleAdmin   Role = "ADMIN"
	RoleSystem  Role = "SYSTEM"
)

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleParent, RoleAdmin, RoleSystem:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// TaskType identifies the kind of work a generation request performs.
type TaskType string

const (
	TaskTutoring         TaskType = "TUTORING"
	TaskGrading          TaskType = "GRADING"
	TaskLessonPlanning   TaskType = "LESSON_PLANNING"
	TaskRubricGeneration TaskType = "RUBRIC_GENERATION"
	TaskQuizGeneration   TaskType = "QUIZ_GENERATION"
	TaskFeedback         TaskType = "FEEDBACK"
	TaskSummarization    TaskType = "SUMMARIZATION"
)

// ParseTaskType converts a string to a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TaskTutoring, TaskGrading, TaskLessonPlanning, TaskRubricGeneration,
		TaskQuizGeneration, TaskFeedback, TaskSummarization:
		return TaskType(s), nil
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// Complexity grades how demanding a request is expected to be.
type Complexity string

const (
	ComplexityBasic    Complexity = "BASIC"
	ComplexityMedium   Complexity = "MEDIUM"
	ComplexityAdvanced Complexity = "ADVANCED"
	ComplexityExpert   Complexity = "EXPERT"
)

// ParseComplexity converts a string to a Complexity.
func ParseComplexity(s string) (Complexity, error) {
	switch Complexity(s) {
	case ComplexityBasic, ComplexityMedium, ComplexityAdvanced, ComplexityExpert:
		return Complexity(s), nil
	}
	return "", fmt.Errorf("unknown complexity %q", s)
}

// Rank returns an ordering value for comparing complexities.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityBasic:
		return 0
	case ComplexityMedium:
		return 1
	case ComplexityAdvanced:
		return 2
	case ComplexityExpert:
		return 3
	}
	return 1
}
