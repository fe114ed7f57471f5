package mapper

import (
	"encoding/json"

	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/model"

	"gorm.io/datatypes"
)

type OrganizationMapper struct{}

func NewOrganizationMapper() *OrganizationMapper {
	return &OrganizationMapper{}
}

func (m *OrganizationMapper) ToEntity(o *model.Organization) *entity.Organization {
	if o == nil {
		return nil
	}
	return &entity.Organization{
		Id:        o.Id,
		Name:      o.Name,
		Quota:     json.RawMessage(o.Quota),
		CreatedAt: o.CreatedAt,
	}
}

func (m *OrganizationMapper) ToModel(o *entity.Organization) *model.Organization {
	if o == nil {
		return nil
	}
	return &model.Organization{
		Id:        o.Id,
		Name:      o.Name,
		Quota:     datatypes.JSON(o.Quota),
		CreatedAt: o.CreatedAt,
	}
}
