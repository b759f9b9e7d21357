package domain

// Platform is a console/PC family. Source-specific generations
// (playstation3/4/5 and so on) are folded into the family before
// anything reaches storage.
type Platform string

const (
	PlatformPC          Platform = "pc"
	PlatformPlayStation Platform = "playstation"
	PlatformXbox        Platform = "xbox"
	PlatformNintendo    Platform = "nintendo"
)

// String returns the string representation of Platform.
func (p Platform) String() string {
	return string(p)
}

// IsValid checks if the platform is a valid value.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformPC, PlatformPlayStation, PlatformXbox, PlatformNintendo:
		return true
	}
	return false
}

// Storefront identifies where a release is sold.
type Storefront string

const (
	StorefrontSteam    Storefront = "steam"
	StorefrontPSN      Storefront = "psn"
	StorefrontXbox     Storefront = "xbox-store"
	StorefrontNintendo Storefront = "nintendo-eshop"
	StorefrontOther    Storefront = "other"
)

// String returns the string representation of Storefront.
func (s Storefront) String() string {
	return string(s)
}

// IsValid checks if the storefront is a valid value.
func (s Storefront) IsValid() bool {
	switch s {
	case StorefrontSteam, StorefrontPSN, StorefrontXbox, StorefrontNintendo, StorefrontOther:
		return true
	}
	return false
}

// DataSource identifies which upstream produced a record.
type DataSource string

const (
	DataSourceStore DataSource = "store"
	DataSourceMeta  DataSource = "meta"
)

// String returns the string representation of DataSource.
func (d DataSource) String() string {
	return string(d)
}

// IsValid checks if the data source is a valid value.
func (d DataSource) IsValid() bool {
	return d == DataSourceStore || d == DataSourceMeta
}
