// Package mutations loads observed de novo mutations from tab-delimited
// tables, grouped by gene symbol.
package mutations

import "strings"

// MissenseConsequences are the protein-altering consequence terms.
var MissenseConsequences = map[string]bool{
	"missense_variant":         true,
	"stop_lost":                true,
	"inframe_deletion":         true,
	"inframe_insertion":        true,
	"coding_sequence_variant":  true,
	"protein_altering_variant": true,
}

// LoFConsequences are the loss-of-function consequence terms.
var LoFConsequences = map[string]bool{
	"stop_gained":                     true,
	"splice_acceptor_variant":         true,
	"splice_donor_variant":            true,
	"frameshift_variant":              true,
	"initiator_codon_variant":         true,
	"start_lost":                      true,
	"conserved_exon_terminus_variant": true,
}

// Mutation is a single observed mutation.
type Mutation struct {
	Symbol      string
	Chrom       string
	Pos         int64
	Ref         string
	Alt         string
	Consequence string
}

// IsLoF reports whether any term of the consequence is loss-of-function.
// Multi-term consequences ("a&b" or "a,b") are split.
func (m Mutation) IsLoF() bool {
	return anyTerm(m.Consequence, LoFConsequences)
}

// IsCoding reports whether the consequence is missense-class or
// loss-of-function.
func (m Mutation) IsCoding() bool {
	return m.IsLoF() || anyTerm(m.Consequence, MissenseConsequences)
}

// IsIndel reports whether the mutation is not a single-base substitution.
func (m Mutation) IsIndel() bool {
	return len(m.Ref) != 1 || len(m.Alt) != 1 || m.Ref == "-" || m.Alt == "-"
}

func anyTerm(consequence string, set map[string]bool) bool {
	for _, term := range strings.FieldsFunc(consequence, func(r rune) bool {
		return r == '&' || r == ','
	}) {
		if set[strings.TrimSpace(term)] {
			return true
		}
	}
	return false
}
