package importer

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// OFXParser reads OFX/QFX statement exports. Each <STMTTRN> block yields one
// record; tags inside a block may appear in any order and may or may not be
// closed.
type OFXParser struct {
	format string
}

const (
	ofxDateFormat = "20060102"
	ofxDateLen    = len(ofxDateFormat)

	// maskedLT stands in for '<' of a marker inside a description.
	maskedLT = "\x00"
)

var (
	ofxBlockStart = regexp.MustCompile(`(?i)<STMTTRN>`)
	ofxBlockEnd   = regexp.MustCompile(`(?i)</STMTTRN>`)
	ofxMarker     = regexp.MustCompile(`(?i)</?STMTTRN>`)

	ofxDate   = ofxTag("DTPOSTED")
	ofxAmount = ofxTag("TRNAMT")
	ofxMemo   = ofxTag("MEMO")
	ofxName   = ofxTag("NAME")
	ofxFITID  = ofxTag("FITID")
)

// ofxTag matches a tag value up to its closing tag, the next tag or the end of
// the line, whichever comes first.
func ofxTag(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)<` + name + `>([^\r\n]*?)(?:</` + name + `>|<[A-Za-z/][A-Za-z0-9./]*>|\r|\n|$)`)
}

// Format returns the parser name.
func (p *OFXParser) Format() string {
	if p.format != "" {
		return p.format
	}
	return "ofx"
}

// Parse reads every transaction block in r. Malformed blocks are skipped and
// reported in Result.Errors. When no record survives, the populated Result is
// returned together with ErrEmptyResult.
func (p *OFXParser) Parse(r io.Reader, opts Options) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s statement: %w", p.Format(), err)
	}

	var res Result
	for i, block := range splitBlocks(string(data)) {
		rec, err := parseBlock(block)
		if err != nil {
			res.Errors = append(res.Errors, ParseError{Block: i + 1, Reason: err.Error()})
			continue
		}
		rec.Block = i + 1
		if !opts.Window.Contains(rec.Date) {
			res.Ignored++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		return res, ErrEmptyResult
	}
	return res, nil
}

// splitBlocks cuts text into transaction blocks. A marker only counts as a
// block boundary when it stands on its own: a <STMTTRN> at the start of a line
// or right after another tag, followed by a tag or line end; a </STMTTRN>
// followed by a tag or line end. Marker text inside a description stays part
// of the block.
func splitBlocks(text string) []string {
	var starts [][]int
	for _, loc := range ofxBlockStart.FindAllStringIndex(text, -1) {
		if (lineStart(text, loc[0]) || text[loc[0]-1] == '>') && tagOrLineEnd(text, loc[1]) {
			starts = append(starts, loc)
		}
	}

	blocks := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		block := text[loc[1]:end]
		for _, closing := range ofxBlockEnd.FindAllStringIndex(block, -1) {
			if blockEnd(block, closing) {
				block = block[:closing[0]]
				break
			}
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func blockEnd(block string, loc []int) bool {
	if !tagOrLineEnd(block, loc[1]) {
		return false
	}
	if loc[0] == 0 || lineStart(block, loc[0]) {
		return true
	}
	c := block[loc[0]-1]
	return c != ' ' && c != '\t'
}

// lineStart reports whether only spaces or tabs precede i on its line.
func lineStart(text string, i int) bool {
	for ; i > 0; i-- {
		switch text[i-1] {
		case ' ', '\t':
			continue
		case '\n', '\r':
			return true
		default:
			return false
		}
	}
	return true
}

// tagOrLineEnd reports whether, after spaces or tabs, i is followed by a tag
// or the end of the line.
func tagOrLineEnd(text string, i int) bool {
	for ; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t':
			continue
		case '<', '\n', '\r':
			return true
		default:
			return false
		}
	}
	return true
}

func parseBlock(block string) (model.RawRecord, error) {
	// Markers left inside a block belong to a description. Hide them from the
	// tag patterns so they do not end the value early.
	block = ofxMarker.ReplaceAllStringFunc(block, func(m string) string {
		return maskedLT + m[1:]
	})

	rawDate, ok := tagValue(ofxDate, block)
	if !ok {
		return model.RawRecord{}, fmt.Errorf("missing DTPOSTED")
	}
	date, err := parseOFXDate(rawDate)
	if err != nil {
		return model.RawRecord{}, err
	}

	rawAmount, ok := tagValue(ofxAmount, block)
	if !ok {
		return model.RawRecord{}, fmt.Errorf("missing TRNAMT")
	}
	amount, err := parseOFXAmount(rawAmount)
	if err != nil {
		return model.RawRecord{}, err
	}

	desc, ok := tagValue(ofxMemo, block)
	if !ok || desc == "" {
		desc, _ = tagValue(ofxName, block)
	}
	ref, _ := tagValue(ofxFITID, block)

	return model.RawRecord{
		Date:        date,
		Description: desc,
		Amount:      amount.Abs(),
		Direction:   model.DirectionOf(amount),
		Reference:   ref,
	}, nil
}

func tagValue(re *regexp.Regexp, block string) (string, bool) {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return "", false
	}
	value := strings.ReplaceAll(m[1], maskedLT, "<")
	return strings.TrimSpace(html.UnescapeString(value)), true
}

// parseOFXDate reads the leading YYYYMMDD of an OFX datetime such as
// "20240105120000.000[-5:EST]".
func parseOFXDate(s string) (time.Time, error) {
	if len(s) < ofxDateLen {
		return time.Time{}, fmt.Errorf("parsing date %q: too short", s)
	}
	date, err := time.Parse(ofxDateFormat, s[:ofxDateLen])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return date, nil
}

// parseOFXAmount reads a signed decimal. A comma is a thousands separator
// when there is a dot too, when there are several commas, or when exactly
// three digits follow it; otherwise it is a decimal comma.
func parseOFXAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	clean = strings.TrimPrefix(clean, "+")
	if n := strings.Count(clean, ","); n > 0 {
		last := strings.LastIndex(clean, ",")
		if n > 1 || strings.Contains(clean, ".") || len(clean)-last-1 == 3 {
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.Replace(clean, ",", ".", 1)
		}
	}
	if clean == "" {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: empty", s)
	}
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return amount, nil
}
