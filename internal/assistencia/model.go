package assistencia

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("registro não encontrado")
	// ErrIDConflito indica colisão do identificador gerado pelo painel.
	ErrIDConflito     = errors.New("identificador já em uso")
	ErrImagemInvalida = errors.New("imagem inválida: apenas JPEG ou PNG até 5MB")
	ErrValidacao      = errors.New("dados inválidos")
)

// MaxImagemBytes limita o tamanho da imagem aceita nos anúncios.
const MaxImagemBytes = 5 << 20

// Anuncio é um aviso do hemocentro exibido na página pública. A imagem fica
// no banco; quando houver espelho em objeto externo, ImagemURL aponta para ele.
type Anuncio struct {
	ID        int64  `json:"id"`
	Titulo    string `json:"titulo"`
	Texto     string `json:"texto"`
	Mime      string `json:"mime,omitempty"`
	Imagem    []byte `json:"-"`
	ImagemURL string `json:"imagemUrl,omitempty"`
	TemImagem bool   `json:"temImagem"`
}

// Campanha é uma campanha permanente de doação.
type Campanha struct {
	ID        int64  `json:"id"`
	Titulo    string `json:"titulo"`
	Descricao string `json:"descricao"`
	Icone     string `json:"icone,omitempty"`
}

// Evento é uma ação de coleta externa com data e endereço.
type Evento struct {
	ID        int64     `json:"id"`
	Titulo    string    `json:"titulo"`
	Descricao string    `json:"descricao"`
	DataHora  time.Time `json:"dataHora"`
	Rua       string    `json:"rua"`
	Numero    string    `json:"numero,omitempty"`
	Bairro    string    `json:"bairro"`
	Cidade    string    `json:"cidade"`
	Estado    string    `json:"estado"`
}

var mimesAceitos = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// IsValidMime indica se o tipo da imagem é aceito.
func IsValidMime(mime string) bool {
	_, ok := mimesAceitos[mime]
	return ok
}
