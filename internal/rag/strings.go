package rag

// User-facing strings. The service answers in Brazilian Portuguese.
const (
	// systemPrompt is the assistant persona sent with every generation.
	systemPrompt = `Você é um assistente útil e amigável especializado em responder perguntas baseadas em documentos.

Instruções importantes:
- SEMPRE use o histórico da conversa para manter contexto entre mensagens
- Se o usuário mencionou informações pessoais (como nome), LEMBRE-SE delas nas próximas respostas
- Quando houver contexto relevante dos documentos, use-o para fundamentar suas respostas
- Para saudações simples, seja breve e natural
- Seja direto, objetivo e preciso
- Se não souber algo ou não houver informação nos documentos, admita honestamente
- Responda sempre em português brasileiro`

	// msgNoDocuments stands in for retrieval context when the store is empty.
	msgNoDocuments = "Nenhum documento foi fornecido ainda."

	// msgNoRelevantInfo stands in when chunks exist but none pass the
	// similarity threshold.
	msgNoRelevantInfo = "Não encontrei informações relevantes nos documentos disponíveis."

	// msgContextCleared confirms the forget-document command.
	msgContextCleared = "Ok! Contexto de documento limpo. Agora buscarei em todos os documentos disponíveis."

	// msgNoActiveDocument answers the which-document command when no
	// document is pinned.
	msgNoActiveDocument = "No momento, não há documento ativo. Estou buscando em todos os documentos disponíveis."

	// msgActiveDocumentFmt answers the which-document command. Arguments:
	// title, formatted upload time.
	msgActiveDocumentFmt = "Estou priorizando o documento: **%s** (enviado em %s)"

	// apologyTimeout replaces the answer when generation exceeds its
	// deadline.
	apologyTimeout = "Desculpe, o modelo demorou muito para responder. Tente uma pergunta mais simples ou aguarde um momento."

	// apologyGenerationFmt replaces the answer on any other generation
	// failure. Argument: the underlying error.
	apologyGenerationFmt = "Erro ao gerar resposta: %v"

	// contextPromptFmt wraps retrieved context around the question.
	// Arguments: context, question.
	contextPromptFmt = "Contexto dos documentos:\n%s\n\nPergunta: %s"
)

// Command trigger phrases, matched as substrings of the lowercased question.
var (
	forgetTriggers = []string{"esqueça o documento", "esquecer documento", "limpar contexto", "novo contexto"}
	whichTriggers  = []string{"qual documento", "que documento", "documento ativo", "documento atual"}
)
