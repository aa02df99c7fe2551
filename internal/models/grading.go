package models

import "sort"

type TestcaseStatus string

const (
	Success            TestcaseStatus = "success"
	Failure            TestcaseStatus = "failure"
	FailureWithMessage TestcaseStatus = "failure_with_message"
	Timeout            TestcaseStatus = "timeout"
	CompileError       TestcaseStatus = "compile_error"
	RunError           TestcaseStatus = "run_error"
)

// TestCase is one fixture: the text fed to stdin and the exact text expected on stdout.
type TestCase struct {
	Name           string `json:"name"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// Submission is one student's directory under the target directory.
type Submission struct {
	StudentName   string `json:"studentName"`
	DirectoryPath string `json:"directoryPath"`
}

// Outcome is the terminal classification of one (submission, test case) run.
// Message is set only for FailureWithMessage and RunError.
type Outcome struct {
	Status  TestcaseStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

func Passed() Outcome        { return Outcome{Status: Success} }
func Failed() Outcome        { return Outcome{Status: Failure} }
func TimedOut() Outcome      { return Outcome{Status: Timeout} }
func CompileFailed() Outcome { return Outcome{Status: CompileError} }

func FailedWithMessage(msg string) Outcome {
	return Outcome{Status: FailureWithMessage, Message: msg}
}

func RunFailed(msg string) Outcome {
	return Outcome{Status: RunError, Message: msg}
}

// Marker is the single-character cell used by tabular reports.
func (o Outcome) Marker() string {
	switch o.Status {
	case Success:
		return " "
	case Failure, FailureWithMessage:
		return "F"
	case Timeout:
		return "T"
	case CompileError:
		return "C"
	default:
		return "!"
	}
}

// StudentResult maps test case name to outcome.
type StudentResult map[string]Outcome

// Passed counts the successful cases.
func (r StudentResult) Passed() int {
	n := 0
	for _, o := range r {
		if o.Status == Success {
			n++
		}
	}
	return n
}

// ClassResult maps student name to that student's results.
type ClassResult map[string]StudentResult

// Students returns the student names in lexical order.
func (c ClassResult) Students() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CaseNames returns the union of case names across all students, sorted.
func (c ClassResult) CaseNames() []string {
	seen := make(map[string]struct{})
	for _, r := range c {
		for name := range r {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StudentReport is the message published for each graded submission.
type StudentReport struct {
	RunID   string        `json:"runId"`
	Suite   string        `json:"suite"`
	Student string        `json:"student"`
	Passed  int           `json:"passed"`
	Total   int           `json:"total"`
	Results StudentResult `json:"results"`
}
