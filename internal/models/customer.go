package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Customer is a registered user of the meal subscription service.
// Identity is the WhatsApp number the customer writes from and is the
// key every conversation is dispatched on; Phone is whatever number
// the customer chose to register with, which may differ.
type Customer struct {
	gorm.Model

	CustomerID string `json:"customer_id" gorm:"uniqueIndex"`
	Identity   string `json:"identity" gorm:"uniqueIndex"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
}

// BeforeCreate hook to auto-generate CustomerID and normalize the identity
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.CustomerID == "" {
		c.CustomerID = fmt.Sprintf("CU%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}

	c.Identity = strings.TrimPrefix(strings.TrimSpace(c.Identity), "whatsapp:")

	return nil
}
