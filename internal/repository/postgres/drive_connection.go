package postgres

import (
	"context"

	"github.com/jwalitptl/consultorio/internal/model"
)

const driveNotFound = "Drive no está conectado."

func (r *driveConnectionRepository) Get(ctx context.Context, ownerID string) (*model.DriveConnection, error) {
	var conn model.DriveConnection
	err := r.db.GetContext(ctx, &conn, `
		SELECT owner_id, connected_email, root_folder_id, updated_at
		FROM drive_connections WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, r.fail("drive_connections.get", driveNotFound, err)
	}
	return &conn, nil
}

func (r *driveConnectionRepository) Upsert(ctx context.Context, conn *model.DriveConnection) error {
	conn.UpdatedAt = r.timestamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drive_connections (owner_id, connected_email, root_folder_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			connected_email = EXCLUDED.connected_email,
			root_folder_id = EXCLUDED.root_folder_id,
			updated_at = EXCLUDED.updated_at`,
		conn.OwnerID, conn.ConnectedEmail, conn.RootFolderID, conn.UpdatedAt)
	return r.fail("drive_connections.upsert", driveNotFound, err)
}

func (r *driveConnectionRepository) Delete(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM drive_connections WHERE owner_id = $1`, ownerID)
	return r.fail("drive_connections.delete", driveNotFound, err)
}
