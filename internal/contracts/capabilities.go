package contracts

import (
	"context"
	"slices"
)

// Идентификаторы возможностей, которые воркер объявляет через GetCapabilities.
const (
	CapabilityScriptServiceV1     = "IScriptService"
	CapabilityScriptServiceV2     = "IScriptServiceV2"
	CapabilityScriptServiceV3     = "IScriptServiceV3"
	CapabilityCapabilitiesService = "ICapabilitiesServiceV2"
)

// CapabilitiesResponse — ответ GetCapabilities.
type CapabilitiesResponse struct {
	SupportedCapabilities []string `json:"supported_capabilities"`
}

// Has проверяет, объявлена ли возможность.
func (r CapabilitiesResponse) Has(capability string) bool {
	return slices.Contains(r.SupportedCapabilities, capability)
}

// HasScriptServiceV2 — воркер поддерживает V2.
func (r CapabilitiesResponse) HasScriptServiceV2() bool {
	return r.Has(CapabilityScriptServiceV2)
}

// HasScriptServiceV3 — воркер поддерживает V3.
func (r CapabilitiesResponse) HasScriptServiceV3() bool {
	return r.Has(CapabilityScriptServiceV3)
}

// CapabilitiesService — контракт запроса возможностей.
type CapabilitiesService interface {
	GetCapabilities(ctx context.Context) (CapabilitiesResponse, error)
}
