package vectortile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // import sqlite3 driver
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
)

//MBTiles sqlite瓦片库
type MBTiles struct {
	db       *sql.DB
	path     string
	writable bool
}

//CreateMBTiles 初始化配置MBTile库（可写）
func CreateMBTiles(path string) (*MBTiles, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// exclusive locking mode ties the database to one connection
	db.SetMaxOpenConns(1)
	stmts := []string{
		"PRAGMA synchronous=0",
		"PRAGMA locking_mode=EXCLUSIVE",
		"PRAGMA journal_mode=DELETE",
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);",
		"create table if not exists metadata (name text, value text);",
		"create unique index if not exists name on metadata (name);",
		"create unique index if not exists tile_index on tiles(zoom_level, tile_column, tile_row);",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &MBTiles{db: db, path: path, writable: true}, nil
}

//OpenMBTiles 只读打开
func OpenMBTiles(path string) (*MBTiles, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &MBTiles{db: db, path: path}, nil
}

//Close 关闭，可写时先ANALYZE
func (m *MBTiles) Close() error {
	if m.db == nil {
		return nil
	}
	if m.writable {
		if _, err := m.db.Exec("ANALYZE;"); err != nil {
			log.Warnf("%s: analyze failed: %v", m.path, err)
		}
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// tms flips y between XYZ and the TMS row stored in tile_row.
func tms(z, y int) int {
	return 1<<uint(z) - 1 - y
}

//ReadTile 读取瓦片（xyz行列号）
func (m *MBTiles) ReadTile(ctx context.Context, z, x, y int) ([]byte, error) {
	if err := ValidateTile(x, y, z); err != nil {
		return nil, err
	}
	var data []byte
	row := m.db.QueryRowContext(ctx, "select tile_data from tiles where zoom_level = ? and tile_column = ? and tile_row = ?;", z, x, tms(z, y))
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d/%d/%d", ErrTileNotFound, z, x, y)
		}
		return nil, err
	}
	return data, nil
}

//WriteTile 写瓦片
func (m *MBTiles) WriteTile(ctx context.Context, z, x, y int, data []byte) error {
	if !m.writable {
		return ErrReadOnly
	}
	if err := ValidateTile(x, y, z); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx, "insert or replace into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);", z, x, tms(z, y), data)
	return err
}

//Tiles 全部瓦片行列号
func (m *MBTiles) Tiles(ctx context.Context) ([]maptile.Tile, error) {
	rows, err := m.db.QueryContext(ctx, "select zoom_level, tile_column, tile_row from tiles;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tiles []maptile.Tile
	for rows.Next() {
		var z, x, row int
		if err := rows.Scan(&z, &x, &row); err != nil {
			return nil, err
		}
		tiles = append(tiles, maptile.New(uint32(x), uint32(tms(z, row)), maptile.Zoom(z)))
	}
	return tiles, rows.Err()
}

//Metadata 读取元数据
func (m *MBTiles) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, "select name, value from metadata;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	md := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		md[k] = v
	}
	return md, rows.Err()
}

//WriteMetadata 写元数据
func (m *MBTiles) WriteMetadata(ctx context.Context, md map[string]string) error {
	if !m.writable {
		return ErrReadOnly
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for k, v := range md {
		if _, err := tx.ExecContext(ctx, "insert or replace into metadata (name, value) values (?, ?);", k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
