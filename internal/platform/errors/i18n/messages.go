package i18n

var enUS = map[string]string{
	"UNKNOWN":                        "Something went wrong",
	"UNAUTHENTICATED":                "Please sign in to continue",
	"IDENTITY_TOKEN_INVALID":         "Your session is invalid, please sign in again",
	"IDENTITY_TOKEN_EXPIRED":         "Your session has expired, please sign in again",
	"IDENTITY_TOKEN_REVOKED":         "You have signed out, please sign in again",
	"REQUEST_INVALID":                "The request could not be read",
	"LISTING_NOT_OWNER":              "Only the owner can change this listing",
	"LISTING_ID_REQUIRED":            "A listing is required",
	"LISTING_TITLE_EMPTY":            "Please enter a title",
	"LISTING_PRICE_INVALID":          "Please enter a valid price",
	"LISTING_MODE_INVALID":           "Listings are either for sale or for loan",
	"LISTING_IMAGE_URL_INVALID":      "The image URL is not valid",
	"LISTING_FILTER_INVALID":         "The listing filter is not valid",
	"LISTING_PAGE_TOKEN_INVALID":     "The page token is not valid",
	"LISTING_NOT_FOUND":              "Product not found",
	"INTEREST_NAME_EMPTY":            "Please enter your name",
	"INTEREST_EMAIL_EMPTY":           "Please enter your email",
	"INTEREST_EMAIL_INVALID":         "Please enter a valid email",
	"INTEREST_DATE_INVALID":          "Dates must use the YYYY-MM-DD format",
	"INTEREST_DATE_RANGE_INCOMPLETE": "Please select both a start and an end date",
	"INTEREST_DATE_RANGE_REQUIRED":   "Please select the dates when you need this item",
	"INTEREST_START_IN_PAST":         "The start date cannot be in the past",
	"INTEREST_END_BEFORE_START":      "The end date must be on or after the start date",
	"INTEREST_OWN_LISTING":           "You cannot show interest in your own item",
	"INTEREST_DUPLICATE":             "You've already shown interest in this item",
	"UPLOAD_FAILED":                  "Failed to upload image",
	"UPLOAD_UNSUPPORTED_TYPE":        "Only JPEG, PNG, GIF and WebP images are supported",
	"UPLOAD_TOO_LARGE":               "The image is larger than {{.Limit}}",
	"BLOB_NOT_FOUND":                 "File not found",
	"STORE_FAILURE":                  "The marketplace is unavailable, please try again",
}

var ptBR = map[string]string{
	"UNKNOWN":                        "Algo deu errado",
	"UNAUTHENTICATED":                "Entre na sua conta para continuar",
	"IDENTITY_TOKEN_INVALID":         "Sua sessão é inválida, entre novamente",
	"IDENTITY_TOKEN_EXPIRED":         "Sua sessão expirou, entre novamente",
	"IDENTITY_TOKEN_REVOKED":         "Você saiu da conta, entre novamente",
	"REQUEST_INVALID":                "Não foi possível ler a requisição",
	"LISTING_NOT_OWNER":              "Somente o dono pode alterar este anúncio",
	"LISTING_TITLE_EMPTY":            "Informe um título",
	"LISTING_PRICE_INVALID":          "Informe um preço válido",
	"LISTING_NOT_FOUND":              "Produto não encontrado",
	"INTEREST_NAME_EMPTY":            "Informe seu nome",
	"INTEREST_EMAIL_EMPTY":           "Informe seu e-mail",
	"INTEREST_DATE_RANGE_INCOMPLETE": "Selecione a data de início e de fim",
	"INTEREST_START_IN_PAST":         "A data de início não pode estar no passado",
	"INTEREST_END_BEFORE_START":      "A data de fim deve ser igual ou posterior à de início",
	"INTEREST_DUPLICATE":             "Você já demonstrou interesse neste item",
	"UPLOAD_FAILED":                  "Falha ao enviar a imagem",
	"STORE_FAILURE":                  "O marketplace está indisponível, tente novamente",
}
