package assistencia

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso às tabelas de anúncios, campanhas e eventos.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrIDConflito
	}
	return err
}

// InsertAnuncio insere um anúncio; a imagem pode ser nula.
func (r *Repository) InsertAnuncio(ctx context.Context, a Anuncio) error {
	var mime, url any
	if a.Mime != "" {
		mime = a.Mime
	}
	if a.ImagemURL != "" {
		url = a.ImagemURL
	}
	var imagem any
	if len(a.Imagem) > 0 {
		imagem = a.Imagem
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO anuncios (id, titulo, texto, mime, imagem, imagem_url)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, a.ID, a.Titulo, a.Texto, mime, imagem, url)
	return mapInsertErr(err)
}

// ListAnuncios devolve os anúncios sem os bytes da imagem.
func (r *Repository) ListAnuncios(ctx context.Context) ([]Anuncio, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, titulo, texto, COALESCE(mime, ''), COALESCE(imagem_url, ''), imagem IS NOT NULL
        FROM anuncios
        ORDER BY id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var itens []Anuncio
	for rows.Next() {
		var a Anuncio
		if err := rows.Scan(&a.ID, &a.Titulo, &a.Texto, &a.Mime, &a.ImagemURL, &a.TemImagem); err != nil {
			return nil, err
		}
		itens = append(itens, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return itens, nil
}

// GetAnuncioImagem devolve mime, bytes e URL espelhada da imagem do anúncio.
func (r *Repository) GetAnuncioImagem(ctx context.Context, id int64) (string, []byte, string, error) {
	var (
		mime   string
		imagem []byte
		url    string
	)
	err := r.pool.QueryRow(ctx, `
        SELECT COALESCE(mime, ''), imagem, COALESCE(imagem_url, '')
        FROM anuncios
        WHERE id = $1
    `, id).Scan(&mime, &imagem, &url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, "", ErrNotFound
		}
		return "", nil, "", err
	}
	return mime, imagem, url, nil
}

// SetAnuncioImagemURL grava a URL do espelho externo da imagem.
func (r *Repository) SetAnuncioImagemURL(ctx context.Context, id int64, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE anuncios SET imagem_url = $1 WHERE id = $2`, url, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAnuncio remove um anúncio.
func (r *Repository) DeleteAnuncio(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM anuncios WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertCampanha insere uma campanha permanente.
func (r *Repository) InsertCampanha(ctx context.Context, c Campanha) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO campanhas (id, titulo, descricao, icone)
        VALUES ($1, $2, $3, $4)
    `, c.ID, c.Titulo, c.Descricao, c.Icone)
	return mapInsertErr(err)
}

// ListCampanhas lista as campanhas permanentes.
func (r *Repository) ListCampanhas(ctx context.Context) ([]Campanha, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, titulo, descricao, COALESCE(icone, '')
        FROM campanhas
        ORDER BY id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var itens []Campanha
	for rows.Next() {
		var c Campanha
		if err := rows.Scan(&c.ID, &c.Titulo, &c.Descricao, &c.Icone); err != nil {
			return nil, err
		}
		itens = append(itens, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return itens, nil
}

// DeleteCampanha remove uma campanha.
func (r *Repository) DeleteCampanha(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campanhas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertEvento insere um evento de coleta externa.
func (r *Repository) InsertEvento(ctx context.Context, e Evento) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO eventos (id, titulo, descricao, data_hora, rua, numero, bairro, cidade, estado)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, e.ID, e.Titulo, e.Descricao, e.DataHora, e.Rua, e.Numero, e.Bairro, e.Cidade, e.Estado)
	return mapInsertErr(err)
}

// ListEventos lista os eventos ordenados pela data.
func (r *Repository) ListEventos(ctx context.Context) ([]Evento, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, titulo, descricao, data_hora, rua, COALESCE(numero, ''), bairro, cidade, estado
        FROM eventos
        ORDER BY data_hora ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var itens []Evento
	for rows.Next() {
		var e Evento
		if err := rows.Scan(&e.ID, &e.Titulo, &e.Descricao, &e.DataHora, &e.Rua, &e.Numero, &e.Bairro, &e.Cidade, &e.Estado); err != nil {
			return nil, err
		}
		itens = append(itens, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return itens, nil
}

// DeleteEvento remove um evento.
func (r *Repository) DeleteEvento(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM eventos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
