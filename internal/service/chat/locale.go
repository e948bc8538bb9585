package chat

import "strings"

// Localized fallback texts. A persona usually carries its own welcome per
// language; these tables cover personas without one and the messages shown in
// place of a reply when an exchange is refused or a provider fails. Unknown
// languages fall back to English.

var welcomeTemplates = map[string]string{
	"en": "Hi, I am {agent}. What would you like to talk about today?",
	"es": "Hola, soy {agent}. ¿De qué te gustaría hablar hoy?",
	"fr": "Bonjour, je suis {agent}. De quoi aimerais-tu parler aujourd'hui ?",
	"de": "Hallo, ich bin {agent}. Worüber möchtest du heute sprechen?",
	"it": "Ciao, sono {agent}. Di cosa ti piacerebbe parlare oggi?",
	"pl": "Cześć, jestem {agent}. O czym chcesz dziś porozmawiać?",
	"pt": "Olá, eu sou {agent}. Sobre o que você gostaria de conversar hoje?",
	"hi": "नमस्ते, मैं {agent} हूँ। आज आप किस बारे में बात करना चाहेंगे?",
}

// WelcomeMessage renders the generic greeting for personas that have no
// welcome text of their own in the requested language.
func WelcomeMessage(language, personaName string) string {
	tpl, ok := welcomeTemplates[language]
	if !ok {
		tpl = welcomeTemplates["en"]
	}
	return strings.ReplaceAll(tpl, "{agent}", personaName)
}

var replyFailureTexts = map[string]string{
	"en": "I got a little distracted and lost my train of thought. Could you say that again?",
	"es": "Me distraje un poco y perdí el hilo. ¿Puedes repetirlo?",
	"fr": "Je me suis un peu distrait et j'ai perdu le fil. Peux-tu répéter ?",
	"de": "Ich war kurz abgelenkt und habe den Faden verloren. Kannst du das wiederholen?",
	"pl": "Trochę się rozkojarzyłem i zgubiłem wątek. Możesz powtórzyć?",
}

var drawFailureTexts = map[string]string{
	"en": "My crayons broke while I was drawing that. Let's try again in a moment!",
	"es": "Se me rompieron los lápices mientras dibujaba. ¡Intentemos de nuevo en un momento!",
	"fr": "Mes crayons se sont cassés pendant que je dessinais. Réessayons dans un instant !",
	"de": "Meine Stifte sind beim Zeichnen abgebrochen. Versuchen wir es gleich noch einmal!",
	"pl": "Kredki mi się połamały podczas rysowania. Spróbujmy za chwilę jeszcze raz!",
}

var storeFailureTexts = map[string]string{
	"en": "My notebook is stuck right now, so I could not write that down. Please try again soon.",
	"es": "Mi cuaderno está atascado ahora mismo y no pude anotarlo. Inténtalo de nuevo pronto.",
	"fr": "Mon carnet est bloqué pour le moment, je n'ai pas pu le noter. Réessaie bientôt.",
	"de": "Mein Notizbuch klemmt gerade, ich konnte das nicht aufschreiben. Versuche es bald noch einmal.",
	"pl": "Mój notatnik się zaciął i nie mogłem tego zapisać. Spróbuj ponownie za chwilę.",
}

var defaultFailureTexts = map[string]string{
	"en": "Something went wrong on my side. Could you try that again?",
	"es": "Algo salió mal de mi lado. ¿Puedes intentarlo de nuevo?",
	"fr": "Quelque chose s'est mal passé de mon côté. Peux-tu réessayer ?",
	"de": "Bei mir ist etwas schiefgelaufen. Kannst du es noch einmal versuchen?",
	"pl": "Coś poszło nie tak po mojej stronie. Możesz spróbować jeszcze raz?",
}

var smallImageTexts = map[string]string{
	"en": "That picture is too small for me to work with. Could you send a bigger one?",
	"es": "Esa imagen es demasiado pequeña para mí. ¿Puedes enviar una más grande?",
	"fr": "Cette image est trop petite pour moi. Peux-tu en envoyer une plus grande ?",
	"de": "Dieses Bild ist zu klein für mich. Kannst du ein größeres schicken?",
	"pl": "Ten obrazek jest dla mnie za mały. Możesz wysłać większy?",
}

var languageMismatchTexts = map[string]string{
	"en": "I can only chat in these languages right now: {languages}. Could you try one of those?",
	"es": "Por ahora solo puedo charlar en estos idiomas: {languages}. ¿Puedes probar con uno de ellos?",
	"fr": "Je ne peux discuter que dans ces langues pour l'instant : {languages}. Peux-tu en essayer une ?",
	"de": "Ich kann im Moment nur in diesen Sprachen chatten: {languages}. Versuchst du es mit einer davon?",
	"pl": "Na razie mogę rozmawiać tylko w tych językach: {languages}. Spróbujesz w jednym z nich?",
}

var quotaExhaustedTexts = map[string]string{
	"en": "We have used up all our chats for now. Ask a grown-up to check the subscription, and come back soon!",
	"es": "Hemos gastado todas nuestras charlas por ahora. Pide a un adulto que revise la suscripción, ¡y vuelve pronto!",
	"fr": "Nous avons utilisé toutes nos discussions pour le moment. Demande à un adulte de vérifier l'abonnement et reviens vite !",
	"de": "Wir haben unsere Chats für den Moment aufgebraucht. Bitte einen Erwachsenen, das Abo zu prüfen, und komm bald wieder!",
	"pl": "Wykorzystaliśmy na razie wszystkie nasze rozmowy. Poproś dorosłego o sprawdzenie subskrypcji i wróć wkrótce!",
}

func localized(table map[string]string, language string) string {
	if text, ok := table[language]; ok {
		return text
	}
	return table["en"]
}

// ReplyFailureMessage is shown when the text provider fails mid-exchange.
func ReplyFailureMessage(language string) string { return localized(replyFailureTexts, language) }

// DrawFailureMessage is shown when the image provider fails mid-exchange.
func DrawFailureMessage(language string) string { return localized(drawFailureTexts, language) }

// StoreFailureMessage is shown when the conversation log cannot be written.
func StoreFailureMessage(language string) string { return localized(storeFailureTexts, language) }

// DefaultFailureMessage covers every failure without a dedicated text.
func DefaultFailureMessage(language string) string { return localized(defaultFailureTexts, language) }

// SmallImageMessage is shown when a source image fails validation.
func SmallImageMessage(language string) string { return localized(smallImageTexts, language) }

// QuotaExhaustedMessage accompanies the subscription warning entry.
func QuotaExhaustedMessage(language string) string { return localized(quotaExhaustedTexts, language) }

// LanguageMismatchMessage lists the languages the chatter may use.
func LanguageMismatchMessage(language string, allowed []string) string {
	text := localized(languageMismatchTexts, language)
	return strings.ReplaceAll(text, "{languages}", strings.Join(allowed, ", "))
}
