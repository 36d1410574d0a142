package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/format"
	"github.com/personaliza/api/internal/platform/textutil"
	"github.com/personaliza/api/internal/repositories"
)

const (
	addressIDPrefix       = "addr_"
	defaultAddressCountry = "BR"
	maxAddressFieldLength = 160
)

var (
	// ErrAddressInvalidInput indicates a malformed address.
	ErrAddressInvalidInput = errors.New("address: invalid input")
	// ErrAddressNotFound indicates the address does not exist for the user.
	ErrAddressNotFound = errors.New("address: not found")
)

// AddressValidationError lists the fields that failed validation.
type AddressValidationError struct {
	Fields []string
}

func (e *AddressValidationError) Error() string {
	return fmt.Sprintf("address: invalid fields: %s", strings.Join(e.Fields, ", "))
}

func (e *AddressValidationError) Unwrap() error {
	return ErrAddressInvalidInput
}

// AddressServiceDeps wires the address repository.
type AddressServiceDeps struct {
	Repository  repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type addressService struct {
	repo     repositories.AddressRepository
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

type addressInput struct {
	UserID       string `validate:"required"`
	Street       string `validate:"required,max=160"`
	Number       string `validate:"required,max=20"`
	Neighborhood string `validate:"required,max=120"`
	City         string `validate:"required,max=120"`
	State        string `validate:"required,len=2,alpha"`
	ZipCode      string `validate:"required,cep"`
	Phone        string `validate:"required,br_phone"`
}

// NewAddressValidator returns a validator with the cep and br_phone rules registered.
func NewAddressValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		return format.ValidCep(fl.Field().String())
	})
	_ = v.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool {
		return format.ValidPhone(fl.Field().String())
	})
	return v
}

// NewAddressService constructs the saved-address service.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Repository == nil {
		return nil, errors.New("address service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &addressService{
		repo:     deps.Repository,
		validate: NewAddressValidator(),
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

func (s *addressService) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrAddressInvalidInput
	}
	addresses, err := s.repo.List(ctx, uid)
	if err != nil {
		return nil, s.mapError(err)
	}
	return addresses, nil
}

func (s *addressService) GetAddress(ctx context.Context, userID, addressID string) (Address, error) {
	uid := strings.TrimSpace(userID)
	aid := strings.TrimSpace(addressID)
	if uid == "" || aid == "" {
		return Address{}, ErrAddressInvalidInput
	}
	addr, err := s.repo.Get(ctx, uid, aid)
	if err != nil {
		return Address{}, s.mapError(err)
	}
	return addr, nil
}

// CreateAddress validates and stores a new address. CEP and phone are stored as digits.
func (s *addressService) CreateAddress(ctx context.Context, cmd CreateAddressCommand) (Address, error) {
	input := addressInput{
		UserID:       strings.TrimSpace(cmd.UserID),
		Street:       textutil.Sanitize(cmd.Street, 0),
		Number:       strings.TrimSpace(cmd.Number),
		Neighborhood: textutil.Sanitize(cmd.Neighborhood, 0),
		City:         textutil.Sanitize(cmd.City, 0),
		State:        strings.ToUpper(strings.TrimSpace(cmd.State)),
		ZipCode:      format.SanitizeCep(cmd.ZipCode),
		Phone:        format.NormalizePhone(cmd.Phone),
	}
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, lowerFirst(fe.Field()))
			}
			sort.Strings(fields)
			return Address{}, &AddressValidationError{Fields: fields}
		}
		return Address{}, fmt.Errorf("%w: %v", ErrAddressInvalidInput, err)
	}

	country := strings.ToUpper(strings.TrimSpace(cmd.Country))
	if country == "" {
		country = defaultAddressCountry
	}
	now := s.now()
	addr := domain.Address{
		ID:           addressIDPrefix + s.newID(),
		UserID:       input.UserID,
		Recipient:    textutil.Sanitize(cmd.Recipient, maxAddressFieldLength),
		Street:       input.Street,
		Number:       input.Number,
		Complement:   textutil.Sanitize(cmd.Complement, maxAddressFieldLength),
		Neighborhood: input.Neighborhood,
		City:         input.City,
		State:        input.State,
		ZipCode:      input.ZipCode,
		Country:      country,
		Phone:        input.Phone,
		IsDefault:    cmd.IsDefault,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, addr); err != nil {
		return Address{}, s.mapError(err)
	}
	s.logger(ctx, "address.created", map[string]any{
		"userID":    addr.UserID,
		"addressID": addr.ID,
	})
	return addr, nil
}

func (s *addressService) mapError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrAddressNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrAddressInvalidInput, err)
		}
	}
	return err
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}
