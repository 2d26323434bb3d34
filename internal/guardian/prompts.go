package guardian

// Prompts shown to the visitor. A rejected submission repeats the retry
// prompt of its phase without saying why.
const (
	PromptOffer          = "¿Qué puedes ofrecer como gesto de ayuda?"
	PromptNeed           = "¿Qué necesitas para continuar tu servicio o ser sostenido?"
	PromptOfferRetry     = "El servicio nace del interior. ¿Qué puedes ofrecer desde tu ser?"
	PromptNeedRetry      = "La verdad sostiene el servicio. ¿Qué necesitas realmente?"
	PromptMatchFormat    = "Alguien ofreció lo que tú necesitas hace %d días. ¿Quieres dejarle una señal?"
	PromptNeedRegistered = "Tu necesidad ha sido registrada y verificada. El ecosistema la sostiene."
	PromptConsecrated    = "Has demostrado servicio auténtico. Eres reconocido como habitante consciente verificado."
	PromptSignalLeft     = "Tu señal ha sido dejada. El servicio se propaga."
	PromptSealed         = "Tu sello ritual ha sido activado."
)
