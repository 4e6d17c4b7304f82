package sources

import (
	"fmt"
	"math"

	apperrors "pm-intelligence/internal/common/errors"
)

// Claim is a subject-predicate-object statement made by one or more sources.
type Claim struct {
	Subject   string                 `json:"subject"`
	Predicate string                 `json:"predicate"`
	Object    string                 `json:"object"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func (c Claim) String() string {
	return fmt.Sprintf("%s %s %s", c.Subject, c.Predicate, c.Object)
}

// ClaimSource is one source's position on a claim. A positive Authority
// overrides the registry value.
type ClaimSource struct {
	SourceType string  `json:"sourceType"`
	Agrees     bool    `json:"agrees"`
	Authority  float64 `json:"authority,omitempty"`
}

type Consensus string

const (
	ConsensusSingle   Consensus = "single_source"
	ConsensusStrong   Consensus = "strong"
	ConsensusModerate Consensus = "moderate"
	ConsensusWeak     Consensus = "weak"
)

type ValidationResult struct {
	Claim          Claim     `json:"claim"`
	Confidence     float64   `json:"confidence"`
	Consensus      Consensus `json:"consensus"`
	AgreementRatio float64   `json:"agreementRatio"`
	SourceCount    int       `json:"sourceCount"`
	Agreeing       []string  `json:"agreeing"`
	Conflicting    []string  `json:"conflicting"`
	Boosted        bool      `json:"boosted"`
	Cached         bool      `json:"cached"`
}

// CrossValidate scores a claim against its sources. A single source yields
// its own authority. Otherwise confidence is the summed authority of agreeing
// sources over the source count, boosted by 1.2 (capped at MaxConfidence)
// when more than 80% of at least three sources agree. Results are cached by
// claim and sources until authorities change or the entry expires.
func (i *Intelligence) CrossValidate(claim Claim, srcs []ClaimSource) (ValidationResult, error) {
	if len(srcs) == 0 {
		return ValidationResult{}, apperrors.NewNoSourcesError(claim.String()).WithCause(ErrNoSources)
	}

	key := claimKey(claim, srcs)
	if cached, ok := i.cache.Get(key); ok {
		cached.Cached = true
		observeValidation(cached.Consensus, true)
		return cached, nil
	}

	res := ValidationResult{
		Claim:       claim,
		SourceCount: len(srcs),
		Agreeing:    []string{},
		Conflicting: []string{},
	}

	if len(srcs) == 1 {
		s := srcs[0]
		res.Confidence = i.resolve(s.SourceType, s.Authority)
		res.Consensus = ConsensusSingle
		res.AgreementRatio = 1
		if s.Agrees {
			res.Agreeing = append(res.Agreeing, s.SourceType)
		} else {
			res.Conflicting = append(res.Conflicting, s.SourceType)
			res.AgreementRatio = 0
		}
	} else {
		var agreeingAuthority float64
		for _, s := range srcs {
			if s.Agrees {
				agreeingAuthority += i.resolve(s.SourceType, s.Authority)
				res.Agreeing = append(res.Agreeing, s.SourceType)
			} else {
				res.Conflicting = append(res.Conflicting, s.SourceType)
			}
		}
		n := float64(len(srcs))
		res.AgreementRatio = float64(len(res.Agreeing)) / n
		res.Confidence = agreeingAuthority / n

		if res.AgreementRatio > consensusRatio && len(srcs) >= consensusMinSources {
			res.Confidence = math.Min(res.Confidence*consensusBoost, MaxConfidence)
			res.Boosted = true
		}
		res.Consensus = consensusFor(res.AgreementRatio)
	}
	res.Confidence = round(res.Confidence, 4)

	i.cache.Add(key, res)
	observeValidation(res.Consensus, false)

	i.logger.Debug("claim cross-validated", map[string]interface{}{
		"claim":      claim.String(),
		"sources":    res.SourceCount,
		"confidence": res.Confidence,
		"consensus":  string(res.Consensus),
	})
	return res, nil
}

func consensusFor(ratio float64) Consensus {
	switch {
	case ratio > consensusRatio:
		return ConsensusStrong
	case ratio >= 0.5:
		return ConsensusModerate
	default:
		return ConsensusWeak
	}
}
