package moderation

import (
	"fmt"
	"strings"
)

const (
	DefaultFlagConfidence = 75.0

	visualScoreUnsafe = 0.98
	visualScoreSafe   = 0.05

	flagInappropriateMetadata = "inappropriate_metadata"
	reasonMetadata            = "Metadata contains blacklisted terms"
	reasonPassed              = "Automated checks passed"
)

var DefaultKeywords = []string{"unsafe", "violence", "explicit", "drugs", "nude"}

type Verdict struct {
	Unsafe       bool
	VisualFlag   bool
	MetadataFlag bool
	VisualScore  float64
	Labels       []string
	Flags        []string
	Reason       string
}

type Aggregator struct {
	FlagConfidence float64
	Keywords       []string
}

func NewAggregator(flagConfidence float64) Aggregator {
	return Aggregator{FlagConfidence: flagConfidence, Keywords: DefaultKeywords}
}

// Aggregate fuses the per-frame labels and the metadata keyword check with the default thresholds.
func Aggregate(frames [][]Label, title, description string) Verdict {
	return NewAggregator(DefaultFlagConfidence).Aggregate(frames, title, description)
}

func (a Aggregator) Aggregate(frames [][]Label, title, description string) Verdict {
	v := Verdict{Labels: []string{}, Flags: []string{}}

	seen := map[string]bool{}
	for _, labels := range frames {
		for _, l := range labels {
			if l.Confidence > a.FlagConfidence {
				v.VisualFlag = true
			}
			if !seen[l.Name] {
				seen[l.Name] = true
				v.Labels = append(v.Labels, l.Name)
			}
		}
	}

	text := strings.ToLower(title + " " + description)
	for _, k := range a.Keywords {
		if strings.Contains(text, k) {
			v.MetadataFlag = true
			break
		}
	}

	v.Unsafe = v.VisualFlag || v.MetadataFlag
	v.VisualScore = visualScoreSafe
	if v.VisualFlag {
		v.VisualScore = visualScoreUnsafe
	}

	switch {
	case v.VisualFlag:
		v.Flags = append(v.Flags, v.Labels...)
		v.Reason = fmt.Sprintf("AI detected sensitive content: %s", strings.Join(v.Labels, ", "))
	case v.MetadataFlag:
		v.Flags = append(v.Flags, flagInappropriateMetadata)
		v.Reason = reasonMetadata
	default:
		v.Reason = reasonPassed
	}

	return v
}
