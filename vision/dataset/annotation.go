package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LexiconFile is the name of the lexicon inside a dataset root
const LexiconFile = "1lexicon.txt"

// Split selects one of the annotation files of a dataset root
type Split string

const (
	SplitTrain Split = "train"
	SplitDev   Split = "dev"
	SplitTest  Split = "test"
)

var annotationFiles = map[Split]string{
	SplitTrain: "1annotation_train.txt",
	SplitDev:   "1annotation_val.txt",
	SplitTest:  "1annotation_test.txt",
}

// ParseSplit validates a split name
func ParseSplit(name string) (Split, error) {
	s := Split(name)
	if _, ok := annotationFiles[s]; !ok {
		return "", &ConfigurationError{Field: "split", Value: name, Err: ErrUnknownSplit}
	}
	return s, nil
}

// AnnotationFile returns the annotation file name for the split
func (s Split) AnnotationFile() (string, error) {
	name, ok := annotationFiles[s]
	if !ok {
		return "", &ConfigurationError{Field: "split", Value: string(s), Err: ErrUnknownSplit}
	}
	return name, nil
}

// LoadLexicon reads one label per line. Line i (0-based) is lexicon index i.
func LoadLexicon(r io.Reader) ([]string, error) {
	var lexicon []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lexicon = append(lexicon, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}
	return lexicon, nil
}

// LoadAnnotations reads the lexicon and the split's annotation file under root
// and returns the labeled samples in annotation file order.
func LoadAnnotations(root string, split Split) ([]Sample, error) {
	annotationName, err := split.AnnotationFile()
	if err != nil {
		return nil, err
	}

	lexFile, err := os.Open(filepath.Join(root, LexiconFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon: %w", err)
	}
	defer lexFile.Close()

	lexicon, err := LoadLexicon(lexFile)
	if err != nil {
		return nil, err
	}

	annFile, err := os.Open(filepath.Join(root, annotationName))
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer annFile.Close()

	return ParseAnnotations(annFile, annotationName, lexicon)
}

// ParseAnnotations reads "<path> <index>" lines from r and resolves each index
// against lexicon. name is only used in error messages. A blank line is
// malformed like any other line without exactly two fields.
func ParseAnnotations(r io.Reader, name string, lexicon []string) ([]Sample, error) {
	var samples []Sample
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		fields := strings.Split(line, " ")
		if len(fields) != 2 || fields[0] == "" {
			return nil, &MalformedLineError{File: name, Line: lineNo, Content: line,
				Reason: fmt.Sprintf("expected 2 space-separated fields, got %d", len(fields))}
		}

		index, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &MalformedLineError{File: name, Line: lineNo, Content: line,
				Reason: "lexicon index is not an integer"}
		}
		if index < 0 || index >= len(lexicon) {
			return nil, &LookupError{File: name, Line: lineNo, Index: index, LexiconSize: len(lexicon)}
		}

		samples = append(samples, Labeled{Path: fields[0], Text: lexicon[index]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return samples, nil
}
