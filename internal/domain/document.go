package domain

const MimeTypePDF = "application/pdf"

// Document is a submitted file before partitioning.
type Document struct {
	Filename string
	MimeType string
	Data     []byte
}

// Unit is one page-like segment produced by a Partitioner. Text is set when
// the partitioner already recovered the page text; Data carries the raw page
// payload when it did not.
type Unit struct {
	Index    int
	MimeType string
	Data     []byte
	Text     string
}

type Extraction struct {
	Text        string
	Expressions []string
}

type SolveResult struct {
	Expression string
	Steps      []SolutionStep
	Answer     string
}
