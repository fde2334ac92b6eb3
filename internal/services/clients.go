package services

import (
	"context"
	"strings"

	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/policy"
	"github.com/diewo77/briefly/internal/store"
	"github.com/diewo77/briefly/internal/validation"
)

// ClientInput is the editable content of a client.
type ClientInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Company    string `json:"company"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type ClientService struct {
	clients *store.ClientStore
	authz   *policy.Gate[uint]
}

func NewClientService(clients *store.ClientStore, authz *policy.Gate[uint]) *ClientService {
	return &ClientService{clients: clients, authz: authz}
}

func (s *ClientService) Create(ctx context.Context, userID uint, in ClientInput) (*models.Client, error) {
	if !s.authz.Can(ctx, userID, policy.ActionCreate, policy.ResourceClient, nil) {
		return nil, ErrForbidden
	}
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	c := &models.Client{
		UserID:     userID,
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.TrimSpace(in.Email),
		Phone:      in.Phone,
		Company:    in.Company,
		Address:    in.Address,
		City:       in.City,
		PostalCode: in.PostalCode,
		Country:    in.Country,
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClientService) Get(ctx context.Context, userID, id uint) (*models.Client, error) {
	c, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.authz.Can(ctx, userID, policy.ActionView, policy.ResourceClient, c) {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (s *ClientService) List(ctx context.Context, userID uint, query string) ([]models.Client, error) {
	if !s.authz.Can(ctx, userID, policy.ActionList, policy.ResourceClient, nil) {
		return nil, ErrForbidden
	}
	return s.clients.List(ctx, userID, strings.TrimSpace(query))
}
