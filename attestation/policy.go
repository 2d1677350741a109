package attestation

import "fmt"

// WritePolicy decides how a MigrationStore treats a failed secondary write.
type WritePolicy int

const (
	// BestEffort: the primary is authoritative. A secondary failure is
	// logged and reported, and the write still succeeds.
	BestEffort WritePolicy = iota
	// Strict: both stores are co-authoritative. Either failure fails the write.
	Strict
)

func (p WritePolicy) String() string {
	switch p {
	case BestEffort:
		return "best_effort"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("WritePolicy(%d)", int(p))
	}
}

// ParseWritePolicy maps "best_effort" / "strict" to a WritePolicy.
// An empty string is BestEffort.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch s {
	case "", "best_effort":
		return BestEffort, nil
	case "strict":
		return Strict, nil
	default:
		return BestEffort, fmt.Errorf("attestation: unknown write policy %q", s)
	}
}

// UnmarshalText lets config parse the policy directly from the environment.
func (p *WritePolicy) UnmarshalText(b []byte) error {
	v, err := ParseWritePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
