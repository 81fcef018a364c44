package model

import "time"

// Shop holds the subset of shop data the booking flow needs: identity,
// opening hours and the service catalog.
type Shop struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"ownerId"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone,omitempty"`
	Address   string        `json:"address,omitempty"`
	OpenTime  string        `json:"openTime"`  // "HH:MM", 24-hour
	CloseTime string        `json:"closeTime"` // "HH:MM", 24-hour
	Services  []ShopService `json:"services"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ShopService is a catalog entry a customer can book.
type ShopService struct {
	ID          string `json:"id"`
	ShopID      string `json:"shopId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Duration    int    `json:"duration"` // minutes
	Active      bool   `json:"active"`
}

// ServiceByID looks up a catalog entry on the shop.
func (s Shop) ServiceByID(id string) (ShopService, bool) {
	for _, svc := range s.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return ShopService{}, false
}
