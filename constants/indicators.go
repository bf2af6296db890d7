package constants

// ResumeIndicators are terms that show up on resumes and CVs far more often than
// in research papers. The local acceptability check counts how many of them
// appear in the lower-cased excerpt.
var ResumeIndicators = []string{
	"experience",
	"education",
	"skills",
	"contact",
	"objective",
	"references available",
	"curriculum vitae",
	"resume",
	"work history",
	"employment history",
	"linkedin",
	"certifications",
}

// ResumeThreshold is the number of indicator matches that must be exceeded
// before a document is rejected locally.
const ResumeThreshold = 4

// RejectionSentinel is the reserved token the model is told to emit when the
// document is not a research paper.
const RejectionSentinel = "INVALID_DOCUMENT"

// AcceptedCategory names the document class the service analyzes; it is used in
// prompts and in caller-facing rejection messages.
const AcceptedCategory = "research paper"

// DisallowedCategory is the class the local heuristic is tuned for.
const DisallowedCategory = "resume/CV"
