package parse

import (
	"strings"
)

// SplitDocuments splits a text blob containing several JSON documents
// printed back to back with no separator, as emitted by run-all style
// invocations that write every module's document to one stream.
//
// A document boundary is an opening brace immediately following a newline;
// the blob is split right before each boundary after the first. This is a
// best-effort heuristic (concatenated JSON has no self-delimiting property)
// and misfires if a document's own text contains a newline followed by an
// unescaped opening brace. That case is a known limitation, not handled
// here.
func SplitDocuments(text string) []string {
	var docs []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == '{' && text[i-1] == '\n' {
			if doc := strings.TrimSpace(text[start:i]); doc != "" {
				docs = append(docs, doc)
			}
			start = i
		}
	}
	if doc := strings.TrimSpace(text[start:]); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// ParseValueMaps splits a run-all output stream and parses every document
// as a ValueMap. The batch fails atomically: the first document that is
// not valid JSON aborts the whole parse with a DecodeError identifying the
// document's position, and no partial result is returned.
func ParseValueMaps(text string) ([]*ValueMap, error) {
	raw := SplitDocuments(text)
	out := make([]*ValueMap, 0, len(raw))
	for i, doc := range raw {
		vm, err := ParseValueMap([]byte(doc))
		if err != nil {
			return nil, &DecodeError{Doc: i, Err: unwrapDecode(err)}
		}
		out = append(out, vm)
	}
	return out, nil
}

// ParsePlanDocuments splits a run-all plan stream and parses every document
// as a PlanDocument. Failure is atomic, as for ParseValueMaps.
func ParsePlanDocuments(text string) ([]*PlanDocument, error) {
	raw := SplitDocuments(text)
	out := make([]*PlanDocument, 0, len(raw))
	for i, doc := range raw {
		plan, err := ParsePlanDocument([]byte(doc))
		if err != nil {
			return nil, &DecodeError{Doc: i, Err: unwrapDecode(err)}
		}
		out = append(out, plan)
	}
	return out, nil
}

// unwrapDecode extracts the inner JSON error so positional DecodeErrors do
// not nest a second DecodeError.
func unwrapDecode(err error) error {
	if de, ok := err.(*DecodeError); ok {
		return de.Err
	}
	return err
}
