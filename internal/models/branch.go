package models

// Branch is a physical clinic location.
type Branch struct {
	BaseModel

	Name    string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Address string `gorm:"type:text" json:"address"`
}
