// Package bridge defines the semantic bridge edge linking a structural
// element to a canonical entity, and the repository contract for committing
// bridge sets.
package bridge

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/silicograph/bridger/pkg/errors"
)

// MethodJaroWinkler tags bridges produced by the consolidated Jaro-Winkler
// scoring path.  The tag is stored on every edge so downstream audits can
// distinguish scoring generations.
const MethodJaroWinkler = "consolidated_jaro_winkler"

// Bridge links one structural element to its best-matching canonical entity.
// At most one bridge exists per element per run; re-running replaces the set
// wholesale.
type Bridge struct {
	// FromElementID is the bridged structural element.
	FromElementID string `json:"from_element_id"`

	// ToEntityID is the winning canonical entity.
	ToEntityID string `json:"to_entity_id"`

	// Score is the final clamped score in [0, 1] that won the match.
	Score float64 `json:"score"`

	// Method tags the scoring path that produced the edge.
	Method string `json:"method"`

	// ContextFlag records whether the winning entity was inside the
	// parent's graph context and received the in-context boost.  Penalized
	// and neutral matches carry false.
	ContextFlag bool `json:"context_flag"`
}

// Validate enforces the bridge invariants before commit.
func (b *Bridge) Validate() error {
	if b == nil {
		return errors.InvalidParam("bridge is nil")
	}
	if b.FromElementID == "" || b.ToEntityID == "" {
		return errors.InvalidParam("bridge is missing an endpoint").
			WithDetail(fmt.Sprintf("from=%q to=%q", b.FromElementID, b.ToEntityID))
	}
	if b.Score < 0 || b.Score > 1 {
		return errors.New(errors.ErrCodeValidation, "bridge score out of range").
			WithDetail(fmt.Sprintf("score=%f", b.Score))
	}
	return nil
}

// Key derives the deterministic edge identity from the endpoints and method.
// Identical inputs always produce identical keys, which keeps re-runs
// byte-identical at the store level.
func (b *Bridge) Key() string {
	sum := md5.Sum([]byte(b.FromElementID + ":" + b.ToEntityID + ":" + b.Method))
	return "brg_" + hex.EncodeToString(sum[:])
}

// Sort orders bridges by element ID for deterministic commit order.
func Sort(bridges []*Bridge) {
	sort.Slice(bridges, func(i, j int) bool {
		return bridges[i].FromElementID < bridges[j].FromElementID
	})
}
