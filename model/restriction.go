package model

// SaleRestriction packs a restriction kind and an optional age threshold
// into one integer, matching the column encoding of the catalog schema:
// the low byte carries the age, higher bits the kind.
type SaleRestriction int64

const (
	restrictionNone            = 0
	restrictionKindAge         = 1
	restrictionKindAgeVerified = 2
)

const NoRestriction SaleRestriction = 0

// MinAgeRestriction restricts sale to buyers of at least the given age.
func MinAgeRestriction(age int) SaleRestriction {
	return SaleRestriction(restrictionKindAge<<8 | int64(age&0xff))
}

// AgeVerificationRestriction requires an explicit age-verification step
// regardless of a concrete age threshold.
func AgeVerificationRestriction() SaleRestriction {
	return SaleRestriction(restrictionKindAgeVerified << 8)
}

func (r SaleRestriction) kind() int64 { return int64(r) >> 8 }

func (r SaleRestriction) IsRestricted() bool { return r != NoRestriction }

func (r SaleRestriction) IsAgeRestriction() bool { return r.kind() == restrictionKindAge }

func (r SaleRestriction) RequiresAgeVerification() bool {
	return r.kind() == restrictionKindAgeVerified
}

// MinAge is 0 for unrestricted products.
func (r SaleRestriction) MinAge() int {
	if !r.IsAgeRestriction() {
		return 0
	}
	return int(int64(r) & 0xff)
}
