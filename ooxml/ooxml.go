// Package ooxml builds minimal Office Open XML packages (docx, xlsx, pptx)
// from plain text and packs them with storezip.
//
// Every package carries [Content_Types].xml, the root relationships, the
// format's main part with its relationships, and docProps/app.xml and
// docProps/core.xml. Members are ordered with [Content_Types].xml first,
// _rels/.rels second and the rest by natural path order.
//
// Usage:
//
//	pkg, err := ooxml.Docx([]string{"Hello", "", "World"}, ooxml.WithCreator("me"))
//	data, err := pkg.Bytes()
package ooxml

import (
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/docforge/storezip"
)

// Format identifies an OOXML package flavour.
type Format string

const (
	FormatDocx Format = "docx"
	FormatXlsx Format = "xlsx"
	FormatPptx Format = "pptx"
)

// ErrPackageBuild is returned when a package cannot be assembled or fails
// its structural checks.
var ErrPackageBuild = errors.New("ooxml: package build failed")

// Content is the text to lay out. Only the field matching the format is used.
type Content struct {
	Paragraphs []string   // docx: one paragraph per element
	Rows       [][]string // xlsx: one row per element, one cell per string
	Slides     []string   // pptx: one slide per element, one paragraph per line
}

// Option configures a build.
type Option func(*options)

type options struct {
	creator string
	title   string
	now     time.Time
}

// WithCreator sets dc:creator and the app.xml Application name.
func WithCreator(name string) Option {
	return func(o *options) { o.creator = name }
}

// WithTitle sets dc:title in core.xml.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// WithTime fixes the creation timestamp and the archive modification time.
func WithTime(t time.Time) Option {
	return func(o *options) { o.now = t }
}

func buildOptions(opts []Option) options {
	o := options{creator: "docforge"}
	for _, fn := range opts {
		fn(&o)
	}
	if o.now.IsZero() {
		o.now = time.Now()
	}
	o.now = o.now.UTC().Truncate(time.Second)
	return o
}

// Package is an ordered set of parts ready to be archived.
type Package struct {
	Format  Format
	Members []storezip.Member
	modTime time.Time
}

// Bytes packs the members into a stored ZIP archive.
func (p *Package) Bytes() ([]byte, error) {
	return storezip.Build(p.Members, storezip.WithModTime(p.modTime))
}

// Member returns the part stored at name.
func (p *Package) Member(name string) ([]byte, bool) {
	for _, m := range p.Members {
		if m.Path == name {
			return m.Data, true
		}
	}
	return nil, false
}

// Build renders content as the given format.
func Build(format Format, content Content, opts ...Option) (*Package, error) {
	switch format {
	case FormatDocx:
		return Docx(content.Paragraphs, opts...)
	case FormatXlsx:
		return Xlsx(content.Rows, opts...)
	case FormatPptx:
		return Pptx(content.Slides, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrPackageBuild, format)
	}
}

// Archive renders content and packs it in one step.
func Archive(format Format, content Content, opts ...Option) ([]byte, error) {
	pkg, err := Build(format, content, opts...)
	if err != nil {
		return nil, err
	}
	return pkg.Bytes()
}

// assemble turns the rendered parts into an ordered, verified package.
func assemble(format Format, o options, main mainPart, parts []part) (*Package, error) {
	rootRels, err := relationshipsXML(rootRelationships(main.name))
	if err != nil {
		return nil, err
	}
	all := make([]part, 0, len(parts)+4)
	all = append(all, parts...)
	all = append(all,
		part{name: rootRelsName, data: rootRels},
		part{name: "docProps/app.xml", contentType: ctExtendedProps, data: appXML(o, main.appExtra)},
		part{name: "docProps/core.xml", contentType: ctCoreProps, data: coreXML(o)},
	)
	ct, err := contentTypesXML(all)
	if err != nil {
		return nil, err
	}
	all = append(all, part{name: contentTypesName, data: ct})

	members := make([]storezip.Member, len(all))
	for i, p := range all {
		members[i] = storezip.Member{Path: p.name, Data: p.data}
	}
	SortMembers(members)

	if err := Verify(members); err != nil {
		return nil, err
	}
	return &Package{Format: format, Members: members, modTime: o.now}, nil
}

// part is a rendered package part. Relationship parts carry no content type
// because they are covered by the rels Default.
type part struct {
	name        string
	contentType string
	data        []byte
}

// mainPart describes the officeDocument target of a package.
type mainPart struct {
	name     string
	appExtra string // extra app.xml elements, already escaped
}
