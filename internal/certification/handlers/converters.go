package handlers

import (
	"errors"
	"strings"
	"time"

	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/gartstein/certify/internal/certification/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "certification"

type uploadDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Data string `json:"data"`
	Type string `json:"type"`
}

type customizationDTO struct {
	CustomerName string `json:"customerName"`
	Comments     string `json:"comments"`
}

type paymentDTO struct {
	PaidForBy         string           `json:"paidForBy"`
	Currency          string           `json:"currency"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	SupplierName      string           `json:"supplierName,omitempty"`
	SupplierAmount    *decimal.Decimal `json:"supplierAmount,omitempty"`
	PremierAmount     *decimal.Decimal `json:"premierAmount,omitempty"`
	InvoiceAttachment *uploadDTO       `json:"invoiceAttachment"`
}

// certificationRequest is the body of submit and edit.
type certificationRequest struct {
	ProjectName        string            `json:"projectName"`
	ProjectDetails     string            `json:"projectDetails"`
	Material           string            `json:"material"`
	TestingLaboratory  string            `json:"testingLaboratory"`
	TestingApprovedBy  string            `json:"testingApprovedBy"`
	CertificationType  string            `json:"certificationType"`
	CustomizationInfo  *customizationDTO `json:"customizationInfo"`
	SampleQuantity     *int              `json:"sampleQuantity"`
	DueDate            string            `json:"dueDate"`
	Remarks            string            `json:"remarks"`
	ProductType        []string          `json:"productType"`
	MaterialCategories []string          `json:"materialCategories"`
	ProductionLine     []string          `json:"productionLine"`
	PaymentInfo        paymentDTO        `json:"paymentInfo"`
	Uploads            []uploadDTO       `json:"uploads"`
}

type decisionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type actorResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type submitResponse struct {
	ID           uint `json:"id"`
	SerialNumber uint `json:"serialNumber"`
}

type stageDTO struct {
	Status  string     `json:"status"`
	Comment string     `json:"comment,omitempty"`
	At      *time.Time `json:"at,omitempty"`
}

type approvalsDTO struct {
	TechnicalHead stageDTO `json:"technicalHead"`
	PlantHead     stageDTO `json:"plantHead"`
	Director      stageDTO `json:"director"`
	COO           stageDTO `json:"coo"`
}

type dueDateChangeDTO struct {
	PreviousDate string    `json:"previousDate"`
	NewDate      string    `json:"newDate"`
	ChangedAt    time.Time `json:"changedAt"`
}

type certificationResponse struct {
	ID                 uint               `json:"id"`
	SerialNumber       uint               `json:"serialNumber"`
	ProjectName        string             `json:"projectName"`
	ProjectDetails     string             `json:"projectDetails"`
	Material           string             `json:"material"`
	TestingLaboratory  string             `json:"testingLaboratory"`
	TestingApprovedBy  string             `json:"testingApprovedBy,omitempty"`
	Status             string             `json:"status"`
	DueDate            string             `json:"dueDate"`
	Remarks            string             `json:"remarks"`
	CertificationType  string             `json:"certificationType"`
	CustomizationInfo  *customizationDTO  `json:"customizationInfo,omitempty"`
	SampleQuantity     *int               `json:"sampleQuantity,omitempty"`
	PaymentInfo        paymentDTO         `json:"paymentInfo"`
	ProductType        []string           `json:"productType"`
	MaterialCategories []string           `json:"materialCategories"`
	ProductionLine     []string           `json:"productionLine"`
	DueDateHistory     []dueDateChangeDTO `json:"dueDateHistory"`
	Uploads            []uploadDTO        `json:"uploads"`
	Approvals          approvalsDTO       `json:"approvals"`
	RequestedBy        string             `json:"requestedBy"`
	CreatedAt          time.Time          `json:"createdAt"`
	LastUpdatedOn      time.Time          `json:"lastUpdatedOn"`
}

// requestToDraft converts a request body into a normalized draft. Every
// problem found is reported in one ValidationError.
func requestToDraft(req *certificationRequest) (*models.Draft, error) {
	var fields []string

	draft := &models.Draft{
		ProjectName:        req.ProjectName,
		ProjectDetails:     req.ProjectDetails,
		Material:           req.Material,
		TestingLaboratory:  req.TestingLaboratory,
		TestingApprovedBy:  req.TestingApprovedBy,
		CertificationType:  models.CertificationType(req.CertificationType),
		SampleQuantity:     req.SampleQuantity,
		Remarks:            req.Remarks,
		ProductTypes:       req.ProductType,
		MaterialCategories: req.MaterialCategories,
		ProductionLines:    req.ProductionLine,
		Payment: models.Payment{
			Currency: models.Currency(req.PaymentInfo.Currency),
			Invoice:  dtoToUpload(req.PaymentInfo.InvoiceAttachment),
		},
	}
	if c := req.CustomizationInfo; c != nil {
		draft.Customization = &models.Customization{CustomerName: c.CustomerName, Comments: c.Comments}
	}
	for i := range req.Uploads {
		draft.Uploads = append(draft.Uploads, *dtoToUpload(&req.Uploads[i]))
	}

	if req.DueDate != "" {
		due, err := models.ParseDate(req.DueDate)
		if err != nil {
			fields = append(fields, "dueDate")
		}
		draft.DueDate = due
	}

	if req.PaymentInfo.PaidForBy != "" {
		terms, err := models.NewPaymentTerms(models.PaymentFields{
			PaidForBy:      models.PaidForBy(req.PaymentInfo.PaidForBy),
			SupplierName:   req.PaymentInfo.SupplierName,
			Amount:         req.PaymentInfo.Amount,
			SupplierAmount: req.PaymentInfo.SupplierAmount,
			PremierAmount:  req.PaymentInfo.PremierAmount,
		})
		var verr *e.ValidationError
		switch {
		case err == nil:
			draft.Payment.Terms = terms
		case errors.As(err, &verr):
			fields = append(fields, verr.Fields...)
		default:
			fields = append(fields, "paymentInfo.paidForBy")
		}
	}

	draft.Normalize()
	if err := draft.Validate(); err != nil {
		var verr *e.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		for _, f := range verr.Fields {
			// A given paidForBy has already been checked above.
			if f == "paymentInfo.paidForBy" && req.PaymentInfo.PaidForBy != "" {
				continue
			}
			fields = append(fields, f)
		}
	}
	if len(fields) > 0 {
		return nil, &e.ValidationError{Fields: dedupe(fields)}
	}
	return draft, nil
}

func dtoToUpload(u *uploadDTO) *models.Upload {
	if u == nil {
		return nil
	}
	return &models.Upload{ID: u.ID, Name: u.Name, Data: u.Data, MimeType: u.Type}
}

func uploadToDTO(u models.Upload) uploadDTO {
	return uploadDTO{ID: u.ID, Name: u.Name, Data: u.Data, Type: u.MimeType}
}

func modelToResponse(c *models.Certification) *certificationResponse {
	resp := &certificationResponse{
		ID:                 c.ID,
		SerialNumber:       c.SerialNumber,
		ProjectName:        c.ProjectName,
		ProjectDetails:     c.ProjectDetails,
		Material:           c.Material,
		TestingLaboratory:  c.TestingLaboratory,
		TestingApprovedBy:  c.TestingApprovedBy,
		Status:             string(c.Status),
		Remarks:            c.Remarks,
		CertificationType:  string(c.CertificationType),
		SampleQuantity:     c.SampleQuantity,
		ProductType:        orEmpty(c.ProductTypes),
		MaterialCategories: orEmpty(c.MaterialCategories),
		ProductionLine:     orEmpty(c.ProductionLines),
		DueDateHistory:     make([]dueDateChangeDTO, 0, len(c.DueDateHistory)),
		Uploads:            make([]uploadDTO, 0, len(c.Uploads)),
		RequestedBy:        c.RequestedBy,
		CreatedAt:          c.CreatedAt,
		LastUpdatedOn:      c.LastUpdatedOn,
		Approvals: approvalsDTO{
			TechnicalHead: stageToDTO(c.Stage(models.StageTechnicalHead)),
			PlantHead:     stageToDTO(c.Stage(models.StagePlantHead)),
			Director:      stageToDTO(c.Stage(models.StageDirector)),
			COO:           stageToDTO(c.Stage(models.StageCOO)),
		},
	}
	if !c.DueDate.IsZero() {
		resp.DueDate = c.DueDate.Format(models.DateLayout)
	}
	if cz := c.Customization; cz != nil {
		resp.CustomizationInfo = &customizationDTO{CustomerName: cz.CustomerName, Comments: cz.Comments}
	}
	for _, h := range c.DueDateHistory {
		resp.DueDateHistory = append(resp.DueDateHistory, dueDateChangeDTO{
			PreviousDate: h.PreviousDate.Format(models.DateLayout),
			NewDate:      h.NewDate.Format(models.DateLayout),
			ChangedAt:    h.ChangedAt,
		})
	}
	for _, u := range c.Uploads {
		resp.Uploads = append(resp.Uploads, uploadToDTO(u))
	}

	resp.PaymentInfo = paymentToDTO(c.Payment)
	return resp
}

func paymentToDTO(p models.Payment) paymentDTO {
	dto := paymentDTO{Currency: string(p.Currency)}
	if p.Terms != nil {
		f := models.Fields(p.Terms)
		dto.PaidForBy = string(f.PaidForBy)
		dto.SupplierName = f.SupplierName
		dto.Amount = f.Amount
		dto.SupplierAmount = f.SupplierAmount
		dto.PremierAmount = f.PremierAmount
	}
	if p.Invoice != nil {
		inv := uploadToDTO(*p.Invoice)
		dto.InvoiceAttachment = &inv
	}
	return dto
}

func stageToDTO(d models.StageDecision) stageDTO {
	return stageDTO{Status: string(d.Status), Comment: d.Comment, At: d.At}
}

// mapServiceError maps workflow errors to a gRPC status carrying the
// machine-readable kind. Storage detail never reaches the message.
func (h *CertificationHandler) mapServiceError(err error) error {
	kind := e.Kind(err)
	var (
		code codes.Code
		msg  = err.Error()
	)
	switch kind {
	case "invalid_input":
		code = codes.InvalidArgument
	case "forbidden":
		code = codes.PermissionDenied
	case "already_rejected", "already_decided":
		code = codes.Aborted
	case "not_found":
		code, msg = codes.NotFound, "certification not found"
	case "constraint_violation":
		h.logger.Warn("Constraint violation", zap.Error(err))
		code, msg = codes.AlreadyExists, "conflicting data"
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		code, msg = codes.Internal, "internal server error"
	}
	return statusError(code, msg, kind, err)
}

func statusError(code codes.Code, msg, kind string, cause error) error {
	info := &errdetails.ErrorInfo{Reason: kind, Domain: errorDomain}
	var verr *e.ValidationError
	if errors.As(cause, &verr) {
		info.Metadata = map[string]string{"fields": strings.Join(verr.Fields, ",")}
	}

	st := status.New(code, msg)
	if detailed, err := st.WithDetails(info); err == nil {
		st = detailed
	}
	return st.Err()
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
