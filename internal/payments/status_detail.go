package payments

import "strings"

// Status detail codes returned alongside rejected charges.
const (
	DetailAccredited           = "accredited"
	DetailPendingContingency   = "pending_contingency"
	DetailPendingWaitingPix    = "pending_waiting_transfer"
	DetailBadCardNumber        = "cc_rejected_bad_filled_card_number"
	DetailBadDate              = "cc_rejected_bad_filled_date"
	DetailBadSecurityCode      = "cc_rejected_bad_filled_security_code"
	DetailBadOther             = "cc_rejected_bad_filled_other"
	DetailCallForAuthorize     = "cc_rejected_call_for_authorize"
	DetailCardDisabled         = "cc_rejected_card_disabled"
	DetailDuplicatedPayment    = "cc_rejected_duplicated_payment"
	DetailHighRisk             = "cc_rejected_high_risk"
	DetailInsufficientAmount   = "cc_rejected_insufficient_amount"
	DetailInvalidInstallments  = "cc_rejected_invalid_installments"
	DetailMaxAttempts          = "cc_rejected_max_attempts"
	DetailOtherReason          = "cc_rejected_other_reason"
	DetailExpired              = "expired"
	DetailCancelledByCollector = "by_collector"
)

// GenericRejectionMessage is shown for detail codes without a dedicated message.
const GenericRejectionMessage = "Não foi possível processar seu pagamento. Tente novamente ou use outro meio de pagamento."

var detailMessages = map[string]string{
	DetailBadCardNumber:       "Revise o número do cartão.",
	DetailBadDate:             "Revise a data de validade do cartão.",
	DetailBadSecurityCode:     "Revise o código de segurança do cartão.",
	DetailBadOther:            "Revise os dados do cartão.",
	DetailCallForAuthorize:    "Autorize o pagamento junto ao emissor do cartão.",
	DetailCardDisabled:        "Ligue para o emissor para ativar seu cartão ou use outro meio de pagamento.",
	DetailDuplicatedPayment:   "Você já efetuou um pagamento com esse valor. Caso precise pagar novamente, use outro cartão.",
	DetailHighRisk:            "Seu pagamento foi recusado. Escolha outro meio de pagamento.",
	DetailInsufficientAmount:  "O cartão possui saldo insuficiente.",
	DetailInvalidInstallments: "O cartão não aceita o número de parcelas escolhido.",
	DetailMaxAttempts:         "Você atingiu o limite de tentativas permitido. Escolha outro cartão ou meio de pagamento.",
	DetailPendingContingency:  "Estamos processando seu pagamento. Você receberá o resultado em breve.",
	DetailPendingWaitingPix:   "Aguardando a confirmação do pagamento PIX.",
	DetailExpired:             "O prazo para pagamento expirou.",
}

// StatusDetailMessage maps a gateway status detail to the buyer-facing message.
func StatusDetailMessage(detail string) string {
	if msg, ok := detailMessages[strings.ToLower(strings.TrimSpace(detail))]; ok {
		return msg
	}
	return GenericRejectionMessage
}

// declineDetails maps Stripe decline and error codes onto status detail codes.
var declineDetails = map[string]string{
	"incorrect_number":                DetailBadCardNumber,
	"invalid_number":                  DetailBadCardNumber,
	"expired_card":                    DetailBadDate,
	"invalid_expiry_month":            DetailBadDate,
	"invalid_expiry_year":             DetailBadDate,
	"incorrect_cvc":                   DetailBadSecurityCode,
	"invalid_cvc":                     DetailBadSecurityCode,
	"call_issuer":                     DetailCallForAuthorize,
	"card_not_supported":              DetailCardDisabled,
	"card_disabled":                   DetailCardDisabled,
	"duplicate_transaction":           DetailDuplicatedPayment,
	"fraudulent":                      DetailHighRisk,
	"merchant_blacklist":              DetailHighRisk,
	"insufficient_funds":              DetailInsufficientAmount,
	"card_velocity_exceeded":          DetailMaxAttempts,
	"withdrawal_count_limit_exceeded": DetailMaxAttempts,
	"invalid_installment_plan":        DetailInvalidInstallments,
}

func detailForDecline(code string) string {
	if detail, ok := declineDetails[strings.ToLower(strings.TrimSpace(code))]; ok {
		return detail
	}
	return DetailOtherReason
}
