package model

import "time"

// Donation は金銭による寄付を表す。UserIDは未ログインの寄付では空になる。
type Donation struct {
	ID         string
	ProjectID  string
	UserID     string
	DonorName  string
	DonorEmail string
	Amount     int64
	Message    string
	Anonymous  bool
	Country    string
	CreatedAt  time.Time
}

// DonationWithProject は寄付者プロフィール表示用にプロジェクト名を付加した寄付。
type DonationWithProject struct {
	Donation
	ProjectTitle string
}

// PhysicalDonation は物品寄付（in-kind）を表す。
type PhysicalDonation struct {
	ID         string
	ProjectID  string
	UserID     string
	DonorName  string
	DonorEmail string
	ItemName   string
	Quantity   int
	Unit       string
	Condition  string
	Status     PhysicalDonationStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PhysicalDonationStatus は物品寄付の受け渡し状態を表す。
type PhysicalDonationStatus string

const (
	PhysicalStatusPledged     PhysicalDonationStatus = "pledged"
	PhysicalStatusReceived    PhysicalDonationStatus = "received"
	PhysicalStatusDistributed PhysicalDonationStatus = "distributed"
	PhysicalStatusCancelled   PhysicalDonationStatus = "cancelled"
)

var physicalTransitions = map[PhysicalDonationStatus][]PhysicalDonationStatus{
	PhysicalStatusPledged:  {PhysicalStatusReceived, PhysicalStatusCancelled},
	PhysicalStatusReceived: {PhysicalStatusDistributed},
}

// CanTransitionTo はsからnextへの状態遷移が許可されているかを返す。
func (s PhysicalDonationStatus) CanTransitionTo(next PhysicalDonationStatus) bool {
	for _, allowed := range physicalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid は既知の状態値かを返す。
func (s PhysicalDonationStatus) Valid() bool {
	switch s {
	case PhysicalStatusPledged, PhysicalStatusReceived, PhysicalStatusDistributed, PhysicalStatusCancelled:
		return true
	}
	return false
}

// DonorTotal は寄付者ごとの合計額。リーダーボードの1行に相当する。
type DonorTotal struct {
	DonorKey    string
	DonorName   string
	TotalAmount int64
	GiftCount   int
}
