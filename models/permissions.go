package models

type Feature string

const (
	FeatureManageReservations  Feature = "manageReservations"
	FeatureManagePurchases     Feature = "managePurchases"
	FeatureManageSupport       Feature = "manageSupport"
	FeatureManageEquipment     Feature = "manageEquipment"
	FeatureManageDates         Feature = "manageDates"
	FeatureManageUsers         Feature = "manageUsers"
	FeatureSendNotifications   Feature = "sendNotifications"
	FeatureManageNotices       Feature = "manageNotices"
	FeatureViewHiddenRequests  Feature = "viewHiddenRequests"
	FeatureDeleteRequests      Feature = "deleteRequests"
	FeatureDeleteNotifications Feature = "deleteNotifications"
)

var AllFeatures = []Feature{
	FeatureManageReservations,
	FeatureManagePurchases,
	FeatureManageSupport,
	FeatureManageEquipment,
	FeatureManageDates,
	FeatureManageUsers,
	FeatureSendNotifications,
	FeatureManageNotices,
	FeatureViewHiddenRequests,
	FeatureDeleteRequests,
	FeatureDeleteNotifications,
}

// Permissions is the feature-flag set granted to a role.
type Permissions map[Feature]bool

func (p Permissions) Has(f Feature) bool {
	return p[f]
}

func grant(features ...Feature) Permissions {
	p := make(Permissions, len(AllFeatures))
	for _, f := range AllFeatures {
		p[f] = false
	}
	for _, f := range features {
		p[f] = true
	}
	return p
}

var rolePermissions = map[Role]Permissions{
	RoleAdmin: grant(AllFeatures...),
	RoleOperacional: grant(
		FeatureManageReservations,
		FeatureManageSupport,
		FeatureManageEquipment,
		FeatureManageDates,
		FeatureSendNotifications,
		FeatureManageNotices,
		FeatureViewHiddenRequests,
	),
	RoleFinanceiro: grant(
		FeatureManagePurchases,
		FeatureSendNotifications,
		FeatureViewHiddenRequests,
	),
	RolePedagogico: grant(
		FeatureManagePurchases,
		FeatureManageNotices,
	),
	RoleUser: grant(),
}

// Permissions returns a copy of the role's flags; unknown roles get none.
func (r Role) Permissions() Permissions {
	src, ok := rolePermissions[r]
	if !ok {
		return grant()
	}
	out := make(Permissions, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ManageFeature is the feature that lets a role administer requests of type t.
func ManageFeature(t RequestType) Feature {
	switch t {
	case RequestTypeReservation:
		return FeatureManageReservations
	case RequestTypePurchase:
		return FeatureManagePurchases
	default:
		return FeatureManageSupport
	}
}
