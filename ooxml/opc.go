package ooxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hazyhaar/docforge/storezip"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const (
	contentTypesName = "[Content_Types].xml"
	rootRelsName     = "_rels/.rels"

	relOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relCoreProps      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relExtendedProps  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	relWorksheet      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	relSlide          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relSlideMaster    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	relSlideLayout    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTheme          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"

	ctRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML           = "application/xml"
	ctCoreProps     = "application/vnd.openxmlformats-package.core-properties+xml"
	ctExtendedProps = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
	ctDocxMain      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ctXlsxMain      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ctWorksheet     = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ctPptxMain      = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	ctSlide         = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctSlideMaster   = "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"
	ctSlideLayout   = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	ctTheme         = "application/vnd.openxmlformats-officedocument.theme+xml"
)

// ContentTypes is the [Content_Types].xml document.
type ContentTypes struct {
	XMLName   xml.Name   `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []Default  `xml:"Default"`
	Overrides []Override `xml:"Override"`
}

// Default maps a file extension to a content type.
type Default struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Override maps one part name (with leading slash) to a content type.
type Override struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Relationships is a .rels document.
type Relationships struct {
	XMLName       xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

// Relationship links a source part to a target.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

func contentTypesXML(parts []part) ([]byte, error) {
	ct := ContentTypes{
		Defaults: []Default{
			{Extension: "rels", ContentType: ctRelationships},
			{Extension: "xml", ContentType: ctXML},
		},
	}
	for _, p := range parts {
		if p.contentType == "" {
			continue
		}
		ct.Overrides = append(ct.Overrides, Override{PartName: "/" + p.name, ContentType: p.contentType})
	}
	sort.Slice(ct.Overrides, func(i, j int) bool {
		return naturalLess(ct.Overrides[i].PartName, ct.Overrides[j].PartName)
	})
	return marshalPart(ct)
}

func relationshipsXML(rels []Relationship) ([]byte, error) {
	return marshalPart(Relationships{Relationships: rels})
}

func rootRelationships(mainName string) []Relationship {
	return []Relationship{
		{ID: "rId1", Type: relOfficeDocument, Target: mainName},
		{ID: "rId2", Type: relCoreProps, Target: "docProps/core.xml"},
		{ID: "rId3", Type: relExtendedProps, Target: "docProps/app.xml"},
	}
}

// marshalPart encodes v after the standalone XML declaration.
func marshalPart(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: marshal %T: %v", ErrPackageBuild, v, err)
	}
	return buf.Bytes(), nil
}

// SortMembers orders members for an OPC package: [Content_Types].xml, then
// _rels/.rels, then every other part by natural path order.
func SortMembers(members []storezip.Member) {
	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := memberRank(members[i].Path), memberRank(members[j].Path)
		if ri != rj {
			return ri < rj
		}
		return naturalLess(members[i].Path, members[j].Path)
	})
}

func memberRank(name string) int {
	switch name {
	case contentTypesName:
		return 0
	case rootRelsName:
		return 1
	default:
		return 2
	}
}

// naturalLess compares strings so that digit runs order numerically:
// slide2.xml sorts before slide10.xml.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := a[0], b[0]
		if isDigit(ca) && isDigit(cb) {
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			a, b = ra, rb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// Verify checks the OPC invariants a consumer relies on: member ordering,
// content type coverage, and that every internal relationship resolves.
func Verify(members []storezip.Member) error {
	if len(members) < 2 || members[0].Path != contentTypesName || members[1].Path != rootRelsName {
		return fmt.Errorf("%w: package must start with %s and %s", ErrPackageBuild, contentTypesName, rootRelsName)
	}

	present := make(map[string]bool, len(members))
	for _, m := range members {
		if present[m.Path] {
			return fmt.Errorf("%w: duplicate part %q", ErrPackageBuild, m.Path)
		}
		present[m.Path] = true
	}

	var ct ContentTypes
	if err := xml.Unmarshal(members[0].Data, &ct); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrPackageBuild, contentTypesName, err)
	}
	defaults := make(map[string]bool)
	for _, d := range ct.Defaults {
		defaults[strings.ToLower(d.Extension)] = true
	}
	overrides := make(map[string]bool)
	for _, o := range ct.Overrides {
		name := strings.TrimPrefix(o.PartName, "/")
		if !present[name] {
			return fmt.Errorf("%w: content type override for missing part %q", ErrPackageBuild, o.PartName)
		}
		overrides[name] = true
	}

	for _, m := range members[1:] {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(m.Path), "."))
		if !overrides[m.Path] && !defaults[ext] {
			return fmt.Errorf("%w: no content type for %q", ErrPackageBuild, m.Path)
		}
		if ext != "rels" {
			if !bytes.HasPrefix(m.Data, []byte("<?xml")) {
				continue
			}
			if err := wellFormed(m.Data); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrPackageBuild, m.Path, err)
			}
			continue
		}
		if err := verifyRelationships(m, present); err != nil {
			return err
		}
	}
	return nil
}

func verifyRelationships(m storezip.Member, present map[string]bool) error {
	var rels Relationships
	if err := xml.Unmarshal(m.Data, &rels); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrPackageBuild, m.Path, err)
	}
	base := relsSourceDir(m.Path)
	ids := make(map[string]bool, len(rels.Relationships))
	for _, r := range rels.Relationships {
		if ids[r.ID] {
			return fmt.Errorf("%w: %s: duplicate relationship id %q", ErrPackageBuild, m.Path, r.ID)
		}
		ids[r.ID] = true
		if r.TargetMode == "External" {
			continue
		}
		target := resolveTarget(base, r.Target)
		if !present[target] {
			return fmt.Errorf("%w: %s: %s targets missing part %q", ErrPackageBuild, m.Path, r.ID, target)
		}
	}
	return nil
}

// relsSourceDir returns the directory against which the targets of a .rels
// part resolve: "word/_rels/document.xml.rels" resolves against "word".
func relsSourceDir(relsPath string) string {
	dir := path.Dir(path.Dir(relsPath))
	if dir == "." {
		return ""
	}
	return dir
}

func resolveTarget(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Join("/", base, target), "/")
}

func wellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
