package domain

// SellerPackage is a listing tier a seller pays for at registration.
type SellerPackage struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	PhotoUploads int    `json:"photo_uploads"`
	VideoUploads int    `json:"video_uploads"`
}

var sellerPackages = map[string]SellerPackage{
	"basic":    {ID: "basic", Name: "Basic", Price: 800, PhotoUploads: 1, VideoUploads: 0},
	"standard": {ID: "standard", Name: "Standard", Price: 1500, PhotoUploads: 2, VideoUploads: 0},
	"premium":  {ID: "premium", Name: "Premium", Price: 2500, PhotoUploads: 3, VideoUploads: 1},
}

// LookupSellerPackage reads the catalog at call time; reconciliation calls it
// when the account is created, not when payment starts.
func LookupSellerPackage(id string) (SellerPackage, bool) {
	p, ok := sellerPackages[id]
	return p, ok
}

func SellerPackages() []SellerPackage {
	return []SellerPackage{sellerPackages["basic"], sellerPackages["standard"], sellerPackages["premium"]}
}
