// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import (
	"fmt"
	"path/filepath"

	"github.com/beevik/etree"
	"github.com/google/renameio/v2"
)

// DASHNamespace is the default MPD namespace.
const DASHNamespace = "urn:mpeg:dash:schema:mpd:2011"

const attrPresentationDuration = "mediaPresentationDuration"

func readMPD(file string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(file); err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "MPD" {
		return nil, fmt.Errorf("%s: no MPD root element", file)
	}
	return root, nil
}

// childElement returns the first child element with the given local name.
func childElement(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ensureNamespace declares the DASH namespace as the default one when the
// document does not bind its root to a namespace already.
func ensureNamespace(root *etree.Element) {
	if root.Space != "" {
		return
	}
	if a := root.SelectAttr("xmlns"); a == nil || a.Value == "" {
		root.CreateAttr("xmlns", DASHNamespace)
	}
}

// mergeMPD builds the multi-period MPD. The first period's document is the
// template; every period contributes its Period element with an explicit
// duration and a BaseURL pointing at its directory.
func mergeMPD(periods []Period, outputDir, name string) (*etree.Element, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: no periods", ErrIncompatiblePeriods)
	}

	template, err := readMPD(filepath.Join(periods[0].OutputDir, name))
	if err != nil {
		return nil, err
	}
	template.RemoveAttr(attrPresentationDuration)
	first := childElement(template, "Period")
	if first == nil {
		return nil, fmt.Errorf("%s: no Period element", periods[0].OutputDir)
	}
	template.RemoveChild(first)

	for _, p := range periods {
		mpd, err := readMPD(filepath.Join(p.OutputDir, name))
		if err != nil {
			return nil, err
		}
		period := childElement(mpd, "Period")
		if period == nil {
			return nil, fmt.Errorf("%s: no Period element", p.OutputDir)
		}
		duration := mpd.SelectAttrValue(attrPresentationDuration, "")
		if duration == "" {
			return nil, fmt.Errorf("%s: MPD without %s", p.OutputDir, attrPresentationDuration)
		}
		period.CreateAttr("duration", duration)

		rel, err := filepath.Rel(outputDir, p.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("relative period dir: %w", err)
		}
		base := etree.NewElement("BaseURL")
		base.Space = period.Space
		base.SetText(filepath.ToSlash(rel) + "/")
		period.InsertChildAt(0, base)

		template.AddChild(period)
	}
	ensureNamespace(template)
	return template, nil
}

// MergeDASH reads the MPD named name in every period's output directory and
// writes the multi-period MPD to outputDir. comments are emitted before the
// root element.
func MergeDASH(periods []Period, outputDir, name string, comments ...string) error {
	root, err := mergeMPD(periods, outputDir, name)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	for _, c := range comments {
		doc.CreateComment(c)
	}
	doc.AddChild(root)
	doc.Indent(2)

	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}
	if err := renameio.WriteFile(filepath.Join(outputDir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
