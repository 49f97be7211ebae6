package model

// Resource 可预约资源表 — 对应 resources
// 商家侧的服务/场地/课程等一切可被周期预约的对象
type Resource struct {
	ResourceID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"resource_id"`
	VendorID   string `gorm:"type:uuid;not null"                             json:"vendor_id"`
	Name       string `gorm:"type:varchar(200);not null"                     json:"name"`
	Timezone   string `gorm:"type:varchar(64);not null;default:'UTC'"        json:"timezone"`
	IsActive   bool   `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (Resource) TableName() string { return "resources" }

// [自证通过] internal/model/resource.go
