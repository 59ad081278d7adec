package imports

import "github.com/jackc/pgx/v5"

// OutboxTable receives the integration events of this module.
var OutboxTable = pgx.Identifier{"import_outbox"}
