// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package callback

import (
	"github.com/openedge-platform/device-service-core/internal/models"
)

// deviceDTO is the wire shape of a device carried by the
// system-events/core-metadata/device/{add,update} payloads.
type deviceDTO struct {
	Id             string                 `json:"id,omitempty"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	ParentName     string                 `json:"parentName,omitempty"`
	Labels         []string               `json:"labels,omitempty"`
	Tags           map[string]string      `json:"tags,omitempty"`
	AdminState     string                 `json:"adminState,omitempty"`
	OperatingState string                 `json:"operatingState,omitempty"`
	ServiceName    string                 `json:"serviceName,omitempty"`
	ProfileName    string                 `json:"profileName"`
	Protocols      models.ProtocolAddress `json:"protocols"`
	Autoevents     []autoeventDTO         `json:"autoEvents,omitempty"`
}

type autoeventDTO struct {
	SourceName        string  `json:"sourceName"`
	Interval          string  `json:"interval"`
	OnChange          bool    `json:"onChange"`
	OnChangeThreshold float64 `json:"onChangeThreshold,omitempty"`
}

func deviceFromDTO(dto deviceDTO) *models.Device {
	device := &models.Device{
		Id:             dto.Id,
		Name:           dto.Name,
		Description:    dto.Description,
		ParentName:     dto.ParentName,
		Labels:         dto.Labels,
		Tags:           dto.Tags,
		AdminState:     models.AdminState(dto.AdminState),
		OperatingState: models.OperatingState(dto.OperatingState),
		ServiceName:    dto.ServiceName,
		ProfileName:    dto.ProfileName,
		Protocols:      dto.Protocols,
	}
	if device.AdminState == "" {
		device.AdminState = models.Unlocked
	}
	if device.OperatingState == "" {
		device.OperatingState = models.Up
	}
	for _, a := range dto.Autoevents {
		device.Autoevents = append(device.Autoevents, &models.Autoevent{
			SourceName:        a.SourceName,
			Interval:          a.Interval,
			OnChange:          a.OnChange,
			OnChangeThreshold: a.OnChangeThreshold,
		})
	}
	return device
}

// profileDTO is the wire shape of a profile carried by the
// deviceprofile/update payload. Field names mirror the platform's usual
// device profile DTO (deviceResources/deviceCommands/resourceOperations).
type profileDTO struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
	Labels       []string       `json:"labels,omitempty"`
	Resources    []resourceDTO  `json:"deviceResources,omitempty"`
	Commands     []commandDTO   `json:"deviceCommands,omitempty"`
}

type resourceDTO struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Attributes  models.ResourceAttributes `json:"attributes,omitempty"`
	Properties  propertyDTO               `json:"properties"`
	Tags        map[string]string         `json:"tags,omitempty"`
}

type propertyDTO struct {
	ValueType    string            `json:"valueType"`
	ReadWrite    string            `json:"readWrite"`
	Scale        *float64          `json:"scale,omitempty"`
	Offset       *float64          `json:"offset,omitempty"`
	Base         *float64          `json:"base,omitempty"`
	Shift        *int              `json:"shift,omitempty"`
	Mask         *uint64           `json:"mask,omitempty"`
	Minimum      *float64          `json:"minimum,omitempty"`
	Maximum      *float64          `json:"maximum,omitempty"`
	Assertion    string            `json:"assertion,omitempty"`
	Units        string            `json:"units,omitempty"`
	DefaultValue string            `json:"defaultValue,omitempty"`
	MediaType    string            `json:"mediaType,omitempty"`
	ValueMapping map[string]string `json:"valueMapping,omitempty"`
}

type commandDTO struct {
	Name      string                 `json:"name"`
	ReadWrite string                 `json:"readWrite"`
	Resources []resourceOperationDTO `json:"resourceOperations"`
	Tags      map[string]string      `json:"tags,omitempty"`
}

type resourceOperationDTO struct {
	DeviceResource string            `json:"deviceResource"`
	DefaultValue   string            `json:"defaultValue,omitempty"`
	Mappings       map[string]string `json:"mappings,omitempty"`
}

// readWrite parses the platform's "R"/"W"/"RW" shorthand.
func readWrite(s string) models.ReadWrite {
	return models.ReadWrite{
		Readable: s == "R" || s == "RW",
		Writable: s == "W" || s == "RW",
	}
}

func profileFromDTO(dto profileDTO) *models.Profile {
	profile := &models.Profile{
		Name:         dto.Name,
		Description:  dto.Description,
		Manufacturer: dto.Manufacturer,
		Model:        dto.Model,
		Labels:       dto.Labels,
	}
	profile.Resources = make([]models.Resource, len(dto.Resources))
	for i, r := range dto.Resources {
		profile.Resources[i] = models.Resource{
			Name:        r.Name,
			Description: r.Description,
			Attributes:  r.Attributes,
			Tags:        r.Tags,
			Properties: models.PropertyValue{
				Type:      models.ValueType(r.Properties.ValueType),
				ReadWrite: readWrite(r.Properties.ReadWrite),
				Transform: models.Transform{
					Scale:  r.Properties.Scale,
					Offset: r.Properties.Offset,
					Base:   r.Properties.Base,
					Shift:  r.Properties.Shift,
					Mask:   r.Properties.Mask,
				},
				Bounds: models.Bounds{
					Minimum: r.Properties.Minimum,
					Maximum: r.Properties.Maximum,
				},
				Assertion:    r.Properties.Assertion,
				Units:        r.Properties.Units,
				DefaultValue: r.Properties.DefaultValue,
				MediaType:    r.Properties.MediaType,
				ValueMapping: r.Properties.ValueMapping,
			},
		}
	}
	profile.Commands = make([]models.Command, len(dto.Commands))
	for i, c := range dto.Commands {
		ops := make([]models.ResourceOperation, len(c.Resources))
		for j, op := range c.Resources {
			ops[j] = models.ResourceOperation{
				ResourceName: op.DeviceResource,
				DefaultValue: op.DefaultValue,
				ValueMapping: op.Mappings,
			}
		}
		profile.Commands[i] = models.Command{
			Name:      c.Name,
			ReadWrite: readWrite(c.ReadWrite),
			Resources: ops,
			Tags:      c.Tags,
		}
	}
	return profile
}

// serviceUpdateDTO is the deviceservice/update payload: only adminState
// is meaningful to this service (§4.10).
type serviceUpdateDTO struct {
	Name       string `json:"name"`
	AdminState string `json:"adminState"`
}
