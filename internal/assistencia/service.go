package assistencia

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/storage"
)

type repository interface {
	InsertAnuncio(ctx context.Context, a Anuncio) error
	ListAnuncios(ctx context.Context) ([]Anuncio, error)
	GetAnuncioImagem(ctx context.Context, id int64) (string, []byte, string, error)
	SetAnuncioImagemURL(ctx context.Context, id int64, url string) error
	DeleteAnuncio(ctx context.Context, id int64) error

	InsertCampanha(ctx context.Context, c Campanha) error
	ListCampanhas(ctx context.Context) ([]Campanha, error)
	DeleteCampanha(ctx context.Context, id int64) error

	InsertEvento(ctx context.Context, e Evento) error
	ListEventos(ctx context.Context) ([]Evento, error)
	DeleteEvento(ctx context.Context, id int64) error
}

// Service reúne as regras da área de assistência: anúncios, campanhas e
// eventos do hemocentro.
type Service struct {
	repo     repository
	uploader storage.Uploader
}

// NewService cria o serviço. O uploader espelha imagens de anúncio em objeto
// externo quando configurado.
func NewService(repo repository, uploader storage.Uploader) *Service {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	return &Service{repo: repo, uploader: uploader}
}

// CreateAnuncio valida e insere o anúncio; imagem é opcional. O espelhamento
// no objeto externo é melhor esforço e nunca derruba a publicação.
func (s *Service) CreateAnuncio(ctx context.Context, a Anuncio) (*Anuncio, error) {
	a.Titulo = strings.TrimSpace(a.Titulo)
	a.Texto = strings.TrimSpace(a.Texto)

	if a.ID <= 0 {
		return nil, fmt.Errorf("%w: id obrigatório", ErrValidacao)
	}
	if a.Titulo == "" {
		return nil, fmt.Errorf("%w: título obrigatório", ErrValidacao)
	}
	if a.Texto == "" {
		return nil, fmt.Errorf("%w: texto obrigatório", ErrValidacao)
	}
	if len(a.Imagem) > 0 {
		if len(a.Imagem) > MaxImagemBytes || !IsValidMime(a.Mime) {
			return nil, ErrImagemInvalida
		}
	} else {
		a.Mime = ""
	}

	if err := s.repo.InsertAnuncio(ctx, a); err != nil {
		return nil, err
	}
	a.TemImagem = len(a.Imagem) > 0

	if len(a.Imagem) > 0 {
		result, err := s.uploader.Upload(ctx, storage.UploadInput{
			Key:          fmt.Sprintf("anuncios/%d", a.ID),
			Body:         a.Imagem,
			ContentType:  a.Mime,
			CacheControl: "public, max-age=86400",
		})
		if err != nil {
			log.Warn().Err(err).Int64("anuncio", a.ID).Msg("espelhamento da imagem falhou")
		} else if result != nil && result.URL != "" {
			if err := s.repo.SetAnuncioImagemURL(ctx, a.ID, result.URL); err != nil {
				log.Warn().Err(err).Int64("anuncio", a.ID).Msg("gravação da url espelhada falhou")
			} else {
				a.ImagemURL = result.URL
			}
		}
	}

	return &a, nil
}

// ListAnuncios lista os anúncios publicados.
func (s *Service) ListAnuncios(ctx context.Context) ([]Anuncio, error) {
	return s.repo.ListAnuncios(ctx)
}

// AnuncioImagem devolve a imagem do anúncio ou a URL espelhada.
func (s *Service) AnuncioImagem(ctx context.Context, id int64) (mime string, imagem []byte, url string, err error) {
	mime, imagem, url, err = s.repo.GetAnuncioImagem(ctx, id)
	if err != nil {
		return "", nil, "", err
	}
	if url == "" && len(imagem) == 0 {
		return "", nil, "", ErrNotFound
	}
	return mime, imagem, url, nil
}

// DeleteAnuncio remove o anúncio.
func (s *Service) DeleteAnuncio(ctx context.Context, id int64) error {
	return s.repo.DeleteAnuncio(ctx, id)
}

// CreateCampanha valida e insere a campanha.
func (s *Service) CreateCampanha(ctx context.Context, c Campanha) (*Campanha, error) {
	c.Titulo = strings.TrimSpace(c.Titulo)
	c.Descricao = strings.TrimSpace(c.Descricao)
	c.Icone = strings.TrimSpace(c.Icone)

	if c.ID <= 0 {
		return nil, fmt.Errorf("%w: id obrigatório", ErrValidacao)
	}
	if c.Titulo == "" {
		return nil, fmt.Errorf("%w: título obrigatório", ErrValidacao)
	}
	if c.Descricao == "" {
		return nil, fmt.Errorf("%w: descrição obrigatória", ErrValidacao)
	}

	if err := s.repo.InsertCampanha(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCampanhas lista as campanhas.
func (s *Service) ListCampanhas(ctx context.Context) ([]Campanha, error) {
	return s.repo.ListCampanhas(ctx)
}

// DeleteCampanha remove a campanha.
func (s *Service) DeleteCampanha(ctx context.Context, id int64) error {
	return s.repo.DeleteCampanha(ctx, id)
}

// CreateEvento valida e insere o evento de coleta externa.
func (s *Service) CreateEvento(ctx context.Context, e Evento) (*Evento, error) {
	e.Titulo = strings.TrimSpace(e.Titulo)
	e.Descricao = strings.TrimSpace(e.Descricao)
	e.Rua = strings.TrimSpace(e.Rua)
	e.Bairro = strings.TrimSpace(e.Bairro)
	e.Cidade = strings.TrimSpace(e.Cidade)
	e.Estado = strings.ToUpper(strings.TrimSpace(e.Estado))

	if e.ID <= 0 {
		return nil, fmt.Errorf("%w: id obrigatório", ErrValidacao)
	}
	if e.Titulo == "" {
		return nil, fmt.Errorf("%w: título obrigatório", ErrValidacao)
	}
	if e.Descricao == "" {
		return nil, fmt.Errorf("%w: descrição obrigatória", ErrValidacao)
	}
	if e.DataHora.IsZero() {
		return nil, fmt.Errorf("%w: data e hora obrigatórias", ErrValidacao)
	}
	if e.Rua == "" || e.Bairro == "" || e.Cidade == "" {
		return nil, fmt.Errorf("%w: endereço incompleto", ErrValidacao)
	}
	if len(e.Estado) != 2 {
		return nil, fmt.Errorf("%w: UF inválida", ErrValidacao)
	}

	if err := s.repo.InsertEvento(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEventos lista os eventos.
func (s *Service) ListEventos(ctx context.Context) ([]Evento, error) {
	return s.repo.ListEventos(ctx)
}

// DeleteEvento remove o evento.
func (s *Service) DeleteEvento(ctx context.Context, id int64) error {
	return s.repo.DeleteEvento(ctx, id)
}
