package flow

import "github.com/pixman/coupon-flow/internal/domain"

// User-facing messages are pt-BR; the storefront audience is Brazilian.
// Log output stays in English.
const (
	MsgNetwork          = "Erro de rede ou servidor. Verifique sua conexão."
	MsgTimeout          = "Operação demorou muito para responder. Tente novamente."
	MsgAPIError         = "Erro de comunicação com o servidor. Tente novamente."
	MsgUnauthorized     = "Não autorizado. Faça login novamente."
	MsgCPFInvalid       = "CPF inválido. Por favor, verifique os dígitos."
	MsgEmailInvalid     = "E-mail inválido."
	MsgUserLookupFailed = "Erro de comunicação ao buscar CPF. Tente novamente."
	MsgUserCreateFailed = "Erro de comunicação ao criar usuário. Tente novamente."
	MsgCouponsFetch     = "Erro ao buscar seus cupons."
	MsgActivationDenied = "Você já ativou um cupom deste programa hoje."
	MsgActivationFailed = "Erro ao ativar cupom. Tente novamente."
	MsgPaymentFailed    = "Erro ao criar cobrança. Tente novamente."
	MsgMerchantNotFound = "Lojista não encontrado."
	MsgRewardsFetch     = "Erro ao buscar programas de recompensa."
	MsgUnknown          = "Erro inesperado. Tente novamente."
)

// UserMessage translates an error into the message shown to the customer.
// Unknown errors collapse into a generic message rather than leaking
// internals.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeValidationCPF:
		return MsgCPFInvalid
	case domain.ErrorCodeValidationEmail:
		return MsgEmailInvalid
	case domain.ErrorCodeNetwork:
		return MsgNetwork
	case domain.ErrorCodeTimeout:
		return MsgTimeout
	case domain.ErrorCodeUnauthorized:
		return MsgUnauthorized
	case domain.ErrorCodeAPI:
		return MsgAPIError
	case domain.ErrorCodeMerchantNotFound:
		return MsgMerchantNotFound
	case domain.ErrorCodeUserCreateFailed:
		return MsgUserCreateFailed
	case domain.ErrorCodeCouponFetchFailed:
		return MsgCouponsFetch
	case domain.ErrorCodeCouponActivationDenied:
		return MsgActivationDenied
	case domain.ErrorCodeCouponActivationFailed:
		return MsgActivationFailed
	case domain.ErrorCodePaymentCreateFailed, domain.ErrorCodePaymentStatusFailed:
		return MsgPaymentFailed
	default:
		return MsgUnknown
	}
}
