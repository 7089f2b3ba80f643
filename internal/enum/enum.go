package enum

// ── User roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin = "ADMIN"
	UserRoleAgent = "AGENT"
)

// ── Configurable labels (no DB constraint) ──

// UnitLabelDefault is used when a product carries no unit label.
const UnitLabelDefault = "unit"
